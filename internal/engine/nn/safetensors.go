package nn

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

const metadataKey = "__metadata__"

// tensorEntry is a named F32 tensor in a safetensors file.
type tensorEntry struct {
	name  string
	shape []int
	data  []float32
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// writeSafetensors writes tensors in order, with string metadata, to path.
// The file is written to a temp file and renamed into place.
func writeSafetensors(path string, tensors []tensorEntry, metadata map[string]string) error {
	header := make(map[string]any, len(tensors)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}
	offset := 0
	for _, t := range tensors {
		n := 1
		for _, d := range t.shape {
			n *= d
		}
		if n != len(t.data) {
			return fmt.Errorf("safetensors: tensor %s has %d values for shape %v", t.name, len(t.data), t.shape)
		}
		header[t.name] = tensorMeta{Dtype: "F32", Shape: t.shape, DataOffsets: [2]int{offset, offset + 4*n}}
		offset += 4 * n
	}
	hdr, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("safetensors: encode header: %w", err)
	}
	if pad := len(hdr) % 8; pad != 0 {
		hdr = append(hdr, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".safetensors-*")
	if err != nil {
		return fmt.Errorf("safetensors: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(hdr)))
	w.Write(lenBuf[:])
	w.Write(hdr)
	var word [4]byte
	for _, t := range tensors {
		for _, v := range t.data {
			binary.LittleEndian.PutUint32(word[:], math.Float32bits(v))
			w.Write(word[:])
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("safetensors: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("safetensors: %w", err)
	}
	return nil
}

// readSafetensors loads every F32 tensor and the string metadata from path.
func readSafetensors(path string) (map[string]tensorEntry, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("safetensors: %w", err)
	}
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("safetensors: file too small: %d bytes", len(data))
	}

	// 8-byte LE header length, then JSON.
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if uint64(len(data)) < 8+headerLen {
		return nil, nil, fmt.Errorf("safetensors: header length %d exceeds file size", headerLen)
	}
	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, nil, fmt.Errorf("safetensors: failed to parse header: %w", err)
	}

	var metadata map[string]string
	if raw, ok := header[metadataKey]; ok {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, nil, fmt.Errorf("safetensors: failed to parse metadata: %w", err)
		}
		delete(header, metadataKey)
	}

	base := int(8 + headerLen)
	tensors := make(map[string]tensorEntry, len(header))
	for name, raw := range header {
		var meta tensorMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, nil, fmt.Errorf("safetensors: tensor %s: %w", name, err)
		}
		if meta.Dtype != "F32" {
			return nil, nil, fmt.Errorf("safetensors: tensor %s: expected dtype F32, got %s", name, meta.Dtype)
		}
		n := 1
		for _, d := range meta.Shape {
			n *= d
		}
		start, end := base+meta.DataOffsets[0], base+meta.DataOffsets[1]
		if end-start != 4*n {
			return nil, nil, fmt.Errorf("safetensors: tensor %s: data size %d doesn't match shape %v", name, end-start, meta.Shape)
		}
		if start < base || end > len(data) {
			return nil, nil, fmt.Errorf("safetensors: tensor %s: data range [%d:%d] exceeds file size %d", name, start, end, len(data))
		}
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[start+4*i:]))
		}
		tensors[name] = tensorEntry{name: name, shape: meta.Shape, data: values}
	}
	return tensors, metadata, nil
}
