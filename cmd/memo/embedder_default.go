//go:build !onnx

package main

import (
	"fmt"

	"github.com/jay7-tech/memo-go/config"
	"github.com/jay7-tech/memo-go/identity"
	"github.com/jay7-tech/memo-go/identity/embedder/mock"
)

// newEmbedder picks the embedder backend. Without the onnx build tag
// only the mock embedder is available.
func newEmbedder(cfg config.IdentityConfig) (identity.Embedder, error) {
	switch cfg.Embedder {
	case "mock":
		return mock.New(), nil
	case "onnx":
		return nil, fmt.Errorf("this binary was built without ONNX support; rebuild with -tags onnx")
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}
