// Package repository holds the storage sentinels shared by the bun-backed
// repositories in its subpackages.
package repository

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type sentinel string

func (s sentinel) Error() string { return string(s) }

const (
	// ErrNotFound is returned when a row is missing.
	ErrNotFound = sentinel("record not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = sentinel("duplicate record")
	// ErrStaleState is returned when a conditional update matched no row
	// because the stored state moved on.
	ErrStaleState = sentinel("stale state")
)

// RecordError marks span as failed and returns err unchanged.
func RecordError(span trace.Span, err error, description string) error {
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	return err
}
