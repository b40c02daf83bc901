package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/crimson-sun/repairclass/internal/config"
	"github.com/crimson-sun/repairclass/internal/logging"

	// Register dataset formats.
	_ "github.com/crimson-sun/repairclass/internal/dataset/csvfile"
	_ "github.com/crimson-sun/repairclass/internal/dataset/xlsx"
)

var (
	cfgFile string
	version = "dev"
	v       = viper.New()
	cfg     config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "repairclass",
		Short: "Repair record category classifier",
		Long: `repairclass trains and applies a text + service-code classifier that assigns
repair records to categories.

Stages: prepare (clean and encode the dataset), train (fit the model and
evaluate it), evaluate (score saved artifacts), predict (classify a sheet).`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
		Version:           version,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./repairclass.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("data", "", "dataset file (.csv or .xlsx)")
	flags.String("artifacts", "", "artifacts directory")
	bind(root, "logging.level", "log-level")
	bind(root, "data.path", "data")
	bind(root, "artifacts.dir", "artifacts")

	root.AddCommand(prepareCmd())
	root.AddCommand(trainCmd())
	root.AddCommand(evaluateCmd())
	root.AddCommand(predictCmd())
	root.AddCommand(configCmd())
	return root
}

// configKeyAnnotation marks a flag with the config key it overrides.
const configKeyAnnotation = "repairclass/config-key"

// bind maps a flag of cmd onto a config key. The binding is applied in
// initConfig for the command being executed only, since several commands
// share keys. An undefined flag or unknown key is a programming error and
// panics while the command tree is built.
func bind(cmd *cobra.Command, key, flag string) {
	if !slices.Contains(configKeys(), key) {
		panic(fmt.Sprintf("bind --%s: unknown config key %q", flag, key))
	}
	fs := cmd.PersistentFlags()
	if fs.Lookup(flag) == nil {
		fs = cmd.Flags()
	}
	if err := fs.SetAnnotation(flag, configKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("bind --%s to %s on %q: %v", flag, key, cmd.Name(), err))
	}
}

// configKeys lists every key that has a default.
var configKeys = sync.OnceValue(func() []string {
	d := viper.New()
	config.SetDefaults(d)
	return d.AllKeys()
})

// bindFlags binds every annotated flag visible to cmd. Only flags set on the
// command line override lower layers.
func bindFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKeyAnnotation]; len(keys) == 1 && err == nil {
			err = v.BindPFlag(keys[0], f)
		}
	})
	return err
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	// Predictions on stdout get JSON logs so the two streams stay separable.
	logging.Init(cfg.Output.Format != "file", logging.ParseLevel(cfg.Logging.Level))

	if cmd.Name() == "show" || cmd.Name() == "init" {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	return nil
}
