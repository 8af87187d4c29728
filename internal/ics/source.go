package ics

import (
	"context"
	"errors"
	"os"
)

// Source yields raw ICS bytes for one sync profile. Implementations:
// HTTPSource (production), StringSource and FileSource (tests, operator
// tooling).
type Source interface {
	// Fetch returns the raw ICS payload.
	Fetch(ctx context.Context) ([]byte, error)
	// Ref is a human-readable reference to the source for logs.
	Ref() string
}

// StringSource serves a fixed in-memory payload.
type StringSource struct {
	Content string
}

func (s StringSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Content == "" {
		return nil, errors.New("string source is empty")
	}
	return []byte(s.Content), nil
}

func (s StringSource) Ref() string { return "string://inline" }

// FileSource reads the payload from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Path == "" {
		return nil, errors.New("file source path is empty")
	}
	return os.ReadFile(s.Path)
}

func (s FileSource) Ref() string { return "file://" + s.Path }
