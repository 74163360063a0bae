package types

import (
	"errors"
	"fmt"
)

// Extraction error taxonomy. Decode-stage errors fail a run and are surfaced
// as-is; ErrInternalExtraction marks stage faults that were absorbed.
var (
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrSizeLimitExceeded  = errors.New("image exceeds size limit")
	ErrEmptyImage         = errors.New("image has no pixels")
	ErrTimeout            = errors.New("extraction deadline exceeded")
	ErrInternalExtraction = errors.New("internal extraction error")
	ErrSuperseded         = errors.New("run superseded by a newer upload")
)

// StageError is an unexpected failure inside a single pipeline stage
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is makes every StageError match ErrInternalExtraction
func (e *StageError) Is(target error) bool {
	return target == ErrInternalExtraction
}
