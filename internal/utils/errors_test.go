package utils

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	ioErr := &IOError{Op: "write", Path: "out.bin", Err: os.ErrPermission}
	tests := []struct {
		name string
		err  error
		want FailureCause
	}{
		{"nil", nil, CauseNone},
		{"plain", errors.New("boom"), CauseOther},
		{"io", ioErr, CauseIO},
		{"wrapped io", fmt.Errorf("upload: %w", ioErr), CauseIO},
		{"transfer", NewTransferError(PhaseUpload, ErrUnexpectedStatus), CauseTransfer},
		{"transfer over io", &TransferError{Phase: PhaseDownload, Chunk: 2, Err: ioErr}, CauseTransfer},
		{"integrity", &IntegrityError{Expected: "aa", Actual: "bb"}, CauseIntegrity},
		{"wrapped integrity", fmt.Errorf("verify: %w", &IntegrityError{}), CauseIntegrity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := &TransferError{Phase: PhaseDownload, Chunk: 3, Err: ErrRangeMismatch}
	assert.Equal(t, "download failed at chunk 3: "+ErrRangeMismatch.Error(), err.Error())
	assert.ErrorIs(t, err, ErrRangeMismatch)

	err = NewTransferError(PhaseProbe, ErrSizeUnknown)
	assert.Equal(t, -1, err.Chunk)
	assert.Contains(t, err.Error(), "probe failed:")
	assert.ErrorIs(t, err, ErrSizeUnknown)

	ioErr := &IOError{Op: "open", Path: "missing.bin", Err: os.ErrNotExist}
	assert.Contains(t, ioErr.Error(), "missing.bin")
	assert.ErrorIs(t, ioErr, os.ErrNotExist)

	assert.Contains(t, (&IntegrityError{Expected: "aa", Actual: "bb"}).Error(), "expected aa, got bb")
}
