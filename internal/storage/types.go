package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// DatasetRecord is the persisted reference dataset of one tenant.
type DatasetRecord struct {
	// TenantID scopes the dataset (one museum, one kiosk fleet).
	TenantID string

	// Model is the embedding model the vectors were produced with.
	Model string

	// Dimension is the embedding length recorded in Data.
	Dimension int

	// Data is the serialized dataset as produced by dataset.Store.Marshal.
	Data []byte

	// UpdatedAt is set by the repository on save.
	UpdatedAt time.Time
}

// Validate checks the fields every repository requires.
func (r DatasetRecord) Validate() error {
	switch {
	case r.TenantID == "":
		return errors.New("tenant ID is required")
	case len(r.Data) == 0:
		return errors.New("dataset payload is empty")
	case r.Dimension < 0:
		return errors.New("dimension must not be negative")
	}
	return nil
}
