//go:build onnx

package main

import (
	"fmt"

	"github.com/jay7-tech/memo-go/config"
	"github.com/jay7-tech/memo-go/identity"
	"github.com/jay7-tech/memo-go/identity/embedder/mock"
	"github.com/jay7-tech/memo-go/identity/embedder/onnx"
)

// newEmbedder picks the embedder backend.
func newEmbedder(cfg config.IdentityConfig) (identity.Embedder, error) {
	switch cfg.Embedder {
	case "mock":
		return mock.New(), nil
	case "onnx":
		return onnx.New(onnx.Config{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  cfg.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}
