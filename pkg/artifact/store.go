// Package artifact persists the three JSON documents each stage keeps:
// inputs, discovery, and outputs.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"path"

	"github.com/launchpath/stagectl/pkg/artifact/backend"
	"github.com/launchpath/stagectl/pkg/errors"
)

// Store reads and writes artifact documents for stages.
type Store struct {
	backend backend.Backend
}

// NewStore creates a store over the given backend.
func NewStore(b backend.Backend) *Store {
	return &Store{backend: b}
}

// NewStoreFromConfig creates a store from a backend configuration.
func NewStoreFromConfig(config backend.Config) (*Store, error) {
	b, err := backend.Create(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	return NewStore(b), nil
}

// Backend returns the underlying blob backend.
func (s *Store) Backend() backend.Backend {
	return s.backend
}

// Load reads one document for a stage. A missing document is reported as
// a NOT_FOUND classified error; callers decide whether that is fatal.
func (s *Store) Load(ctx context.Context, stage string, kind Kind) (Document, error) {
	p := documentPath(stage, kind)

	reader, err := s.backend.Read(ctx, p)
	if err != nil {
		if stderrors.Is(err, backend.ErrNotFound) {
			return nil, errors.NotFoundError("artifact", p)
		}
		return nil, errors.BackendError(s.backend.Type(), "read", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.BackendError(s.backend.Type(), "read", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.ParseError(p, err)
	}

	return doc, nil
}

// Save writes one document for a stage. The backend write is atomic, so
// an interrupt mid-save leaves the previous document intact.
func (s *Store) Save(ctx context.Context, stage string, kind Kind, doc Document) error {
	p := documentPath(stage, kind)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s document for stage %s: %w", kind, stage, err)
	}
	data = append(data, '\n')

	if err := s.backend.Write(ctx, p, bytes.NewReader(data)); err != nil {
		return errors.BackendError(s.backend.Type(), "write", err)
	}

	return nil
}

// Exists reports whether a document is present for the stage.
func (s *Store) Exists(ctx context.Context, stage string, kind Kind) (bool, error) {
	ok, err := s.backend.Exists(ctx, documentPath(stage, kind))
	if err != nil {
		return false, errors.BackendError(s.backend.Type(), "exists", err)
	}
	return ok, nil
}

// Delete removes one document for a stage. Missing documents are ignored.
func (s *Store) Delete(ctx context.Context, stage string, kind Kind) error {
	if err := s.backend.Delete(ctx, documentPath(stage, kind)); err != nil {
		return errors.BackendError(s.backend.Type(), "delete", err)
	}
	return nil
}

// DeleteStage removes every document kept for a stage.
func (s *Store) DeleteStage(ctx context.Context, stage string) error {
	for _, kind := range Kinds {
		if err := s.Delete(ctx, stage, kind); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, errors.ErrCodeNotFound)
}

// LoadAs loads a document and unmarshals it into a typed record.
func LoadAs[T any](ctx context.Context, s *Store, stage string, kind Kind) (*T, error) {
	doc, err := s.Load(ctx, stage, kind)
	if err != nil {
		return nil, err
	}
	return DecodeAs[T](doc, documentPath(stage, kind))
}

// SaveFrom marshals a typed record into a document and saves it.
func SaveFrom(ctx context.Context, s *Store, stage string, kind Kind, v interface{}) error {
	doc, err := Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s document for stage %s: %w", kind, stage, err)
	}
	return s.Save(ctx, stage, kind, doc)
}

// DecodeAs converts a generic document into a typed record.
func DecodeAs[T any](doc Document, source string) (*T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.ParseError(source, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.ParseError(source, err)
	}
	return &out, nil
}

// Encode converts a typed record into a generic document.
func Encode(v interface{}) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func documentPath(stage string, kind Kind) string {
	return path.Join("stages", stage, string(kind)+".json")
}
