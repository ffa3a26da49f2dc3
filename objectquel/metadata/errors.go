package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEntity    = errors.New("metadata: unknown entity")
	ErrUnresolvedTarget = errors.New("metadata: relation target cannot be resolved")
	ErrInvalidEntity    = errors.New("metadata: invalid entity descriptor")
)

type MetadataError struct {
	Entity string
	Reason string
	Err    error
}

func (e *MetadataError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Entity)
	}
	return fmt.Sprintf("%s: %s: %s", e.Err, e.Entity, e.Reason)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

func unknownEntity(name string) error {
	return &MetadataError{Entity: name, Err: ErrUnknownEntity}
}
