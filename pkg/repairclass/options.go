package repairclass

type options struct {
	modelDir      string
	checkpoint    string
	onnxPath      string
	onnxLibrary   string
	lemmatizer    string
	dictionary    string
	stopWordsPath string
}

// Option configures a Classifier.
type Option func(*options)

// WithModelDir sets the artifacts directory.
// Expects: encoders.json, vocab.txt and best.safetensors (or the checkpoint
// chosen with WithCheckpoint).
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithCheckpoint selects the weights snapshot: "best" (default) or "final".
func WithCheckpoint(name string) Option {
	return func(o *options) {
		o.checkpoint = name
	}
}

// WithONNX runs inference through ONNX Runtime on an exported model instead
// of the native weights. libPath may be empty to use the runtime default.
func WithONNX(modelPath, libPath string) Option {
	return func(o *options) {
		o.onnxPath = modelPath
		o.onnxLibrary = libPath
	}
}

// WithLemmatizer selects the lemmatizer the artifacts were prepared with:
// "snowball" (default), "identity" or "dictionary" with a dictionary file.
func WithLemmatizer(name, dictionaryPath string) Option {
	return func(o *options) {
		o.lemmatizer = name
		o.dictionary = dictionaryPath
	}
}

// WithStopWords adds a supplemental stop-word file, one word per line.
func WithStopWords(path string) Option {
	return func(o *options) {
		o.stopWordsPath = path
	}
}

func defaultOptions() options {
	return options{
		modelDir:   "artifacts",
		checkpoint: "best",
		lemmatizer: "snowball",
	}
}
