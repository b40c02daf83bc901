package nn

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/crimson-sun/repairclass/internal/engine/tensor"
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXPredictor runs a two-input classifier exported to ONNX, for example
// from Keras. Inputs are told apart by their second dimension.
type ONNXPredictor struct {
	session  *ort.DynamicAdvancedSession
	catName  string
	seqName  string
	outName  string
	seqType  ort.TensorElementDataType
	catWidth int
	seqLen   int
	classes  int
}

// NewONNXPredictor loads modelPath. libPath is the onnxruntime shared
// library; when empty, libonnxruntime.so next to the model is used.
func NewONNXPredictor(modelPath, libPath string, catWidth, seqLen int) (*ONNXPredictor, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	p := &ONNXPredictor{catWidth: catWidth, seqLen: seqLen}
	if err := p.bindInputs(inputs); err != nil {
		return nil, err
	}
	if len(outputs) != 1 || len(outputs[0].Dimensions) != 2 {
		return nil, fmt.Errorf("onnx: expected a single 2D output, got %d outputs", len(outputs))
	}
	p.outName = outputs[0].Name
	p.classes = int(outputs[0].Dimensions[1])
	if p.classes <= 0 {
		return nil, fmt.Errorf("onnx: output %q has dynamic class dimension", p.outName)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetIntraOpNumThreads(4)
	opts.SetInterOpNumThreads(1)

	p.session, err = ort.NewDynamicAdvancedSession(modelPath,
		[]string{p.catName, p.seqName}, []string{p.outName}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}
	return p, nil
}

// bindInputs picks the categorical and sequence inputs. When both widths are
// equal the declared order decides.
func (p *ONNXPredictor) bindInputs(inputs []ort.InputOutputInfo) error {
	if len(inputs) != 2 {
		return fmt.Errorf("onnx: expected 2 inputs, got %d", len(inputs))
	}
	width := func(in ort.InputOutputInfo) int64 {
		if len(in.Dimensions) != 2 {
			return -1
		}
		return in.Dimensions[1]
	}
	a, b := inputs[0], inputs[1]
	switch {
	case width(a) == int64(p.catWidth) && width(b) == int64(p.seqLen):
	case width(b) == int64(p.catWidth) && width(a) == int64(p.seqLen):
		a, b = b, a
	default:
		return fmt.Errorf("onnx: inputs %q %v and %q %v do not match categorical width %d and sequence length %d",
			a.Name, a.Dimensions, b.Name, b.Dimensions, p.catWidth, p.seqLen)
	}
	p.catName, p.seqName = a.Name, b.Name
	p.seqType = b.DataType
	return nil
}

// Predict runs one inference call over all rows.
func (p *ONNXPredictor) Predict(cat *tensor.Matrix, seq [][]int) (*tensor.Matrix, error) {
	if cat.Cols != p.catWidth || cat.Rows != len(seq) {
		return nil, fmt.Errorf("%w: categorical %dx%d for %d sequences", ErrShapeMismatch, cat.Rows, cat.Cols, len(seq))
	}
	n := int64(cat.Rows)

	tCat, err := ort.NewTensor(ort.NewShape(n, int64(p.catWidth)), cat.Data)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create categorical tensor: %w", err)
	}
	defer tCat.Destroy()

	tSeq, err := p.sequenceTensor(seq)
	if err != nil {
		return nil, err
	}
	defer tSeq.Destroy()

	tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(p.classes)))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer tOut.Destroy()

	if err := p.session.Run([]ort.Value{tCat, tSeq}, []ort.Value{tOut}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	out := tensor.New(cat.Rows, p.classes)
	copy(out.Data, tOut.GetData())
	return out, nil
}

// sequenceTensor encodes token ids with the element type the model declares.
// Keras inputs default to float32.
func (p *ONNXPredictor) sequenceTensor(seq [][]int) (ort.Value, error) {
	shape := ort.NewShape(int64(len(seq)), int64(p.seqLen))
	for i, s := range seq {
		if len(s) != p.seqLen {
			return nil, fmt.Errorf("%w: sequence %d has length %d, want %d", ErrShapeMismatch, i, len(s), p.seqLen)
		}
	}
	var (
		v   ort.Value
		err error
	)
	switch p.seqType {
	case ort.TensorElementDataTypeInt64:
		v, err = ort.NewTensor(shape, flatten[int64](seq))
	case ort.TensorElementDataTypeInt32:
		v, err = ort.NewTensor(shape, flatten[int32](seq))
	default:
		v, err = ort.NewTensor(shape, flatten[float32](seq))
	}
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create sequence tensor: %w", err)
	}
	return v, nil
}

func flatten[T int32 | int64 | float32](seq [][]int) []T {
	var out []T
	for _, s := range seq {
		for _, id := range s {
			out = append(out, T(id))
		}
	}
	return out
}

// Classes returns the width of the model output.
func (p *ONNXPredictor) Classes() int { return p.classes }

// Close releases the ONNX session.
func (p *ONNXPredictor) Close() error {
	return p.session.Destroy()
}
