package utils

import (
	"errors"
	"fmt"
)

type Phase string

const (
	PhaseUpload   Phase = "upload"
	PhaseDownload Phase = "download"
	PhaseProbe    Phase = "probe"
)

// IOError reports a failure on the local filesystem.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// TransferError reports an HTTP or transport failure. Chunk is -1 when
// the failure is not tied to a chunk.
type TransferError struct {
	Phase Phase
	Chunk int
	Err   error
}

func NewTransferError(phase Phase, err error) *TransferError {
	return &TransferError{Phase: phase, Chunk: -1, Err: err}
}

func (e *TransferError) Error() string {
	if e.Chunk >= 0 {
		return fmt.Sprintf("%s failed at chunk %d: %v", e.Phase, e.Chunk, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

type IntegrityError struct {
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("digest mismatch: expected %s, got %s", e.Expected, e.Actual)
}

type FailureCause string

const (
	CauseNone      FailureCause = "none"
	CauseIO        FailureCause = "io"
	CauseTransfer  FailureCause = "transfer"
	CauseIntegrity FailureCause = "integrity"
	CauseOther     FailureCause = "other"
)

// Classify maps an iteration error onto the failure taxonomy. Integrity wins
// over transfer, and transfer over local IO, when errors are nested.
func Classify(err error) FailureCause {
	if err == nil {
		return CauseNone
	}
	var integrityErr *IntegrityError
	if errors.As(err, &integrityErr) {
		return CauseIntegrity
	}
	var transferErr *TransferError
	if errors.As(err, &transferErr) {
		return CauseTransfer
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return CauseIO
	}
	return CauseOther
}
