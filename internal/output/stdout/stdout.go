package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/crimson-sun/repairclass/internal/model"
	"github.com/crimson-sun/repairclass/internal/output"
)

// Output writes JSON-encoded predictions to stdout.
type Output struct {
	enc           *json.Encoder
	probabilities bool
}

// New creates a new stdout Output. probabilities keeps the per-class
// distribution; pretty indents the JSON.
func New(probabilities, pretty bool) *Output {
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{enc: enc, probabilities: probabilities}
}

func (o *Output) Write(_ context.Context, p model.Prediction) error {
	if err := o.enc.Encode(output.FormatPrediction(p, o.probabilities)); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
