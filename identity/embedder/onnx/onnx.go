//go:build onnx

// Package onnx runs a FaceNet-style ONNX model for face embeddings.
// Build with -tags onnx and an ONNX Runtime shared library installed.
package onnx

import (
	"context"
	"fmt"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// Config configures the ONNX face embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// LibraryPath is the ONNX Runtime shared library location.
	LibraryPath string

	// CropSize is the square input size the model expects (default 160,
	// the FaceNet convention).
	CropSize int

	// Dimensions is the embedding vector size (default 512).
	Dimensions int

	// InputName and OutputName override the model's tensor names.
	InputName  string
	OutputName string
}

// Embedder generates face embeddings with ONNX Runtime. Input is a
// normalized CHW float tensor of the face crop; preprocessing (crop,
// resize, (x-127.5)/128 normalization) is the caller's job.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	cropSize   int
	dimensions int
}

// New creates an ONNX face embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: ModelPath is required")
	}
	if cfg.CropSize == 0 {
		cfg.CropSize = 160
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 512
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "embeddings"
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &Embedder{
		session:    session,
		cropSize:   cfg.CropSize,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed runs the model on one face crop tensor.
func (e *Embedder) Embed(_ context.Context, pixels []float32) ([]float32, error) {
	expected := 3 * e.cropSize * e.cropSize
	if len(pixels) != expected {
		return nil, fmt.Errorf("crop tensor has %d values, want %d (3x%dx%d)",
			len(pixels), expected, e.cropSize, e.cropSize)
	}

	shape := ort.NewShape(1, 3, int64(e.cropSize), int64(e.cropSize))
	input, err := ort.NewTensor(shape, pixels)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil} // allocated by Run
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("ONNX inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	output, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	data := output.GetData()
	if len(data) < e.dimensions {
		return nil, fmt.Errorf("output has %d values, want %d", len(data), e.dimensions)
	}
	embedding := make([]float32, e.dimensions)
	copy(embedding, data[:e.dimensions])
	return normalize(embedding), nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// normalize converts the embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
