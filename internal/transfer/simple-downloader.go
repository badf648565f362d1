package transfer

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/tanq16/xferbench/internal/digest"
	"github.com/tanq16/xferbench/internal/utils"
)

// PerformSimpleDownload fetches the whole object with one request, hashing it as it is written.
func PerformSimpleDownload(ctx context.Context, backend Backend, name, outputPath string) (int64, string, error) {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, "", &utils.IOError{Op: "create", Path: outputPath, Err: err}
	}
	defer outFile.Close()

	hasher := digest.New()
	w := io.MultiWriter(fileWriter{w: outFile, path: outputPath}, hasher)
	n, err := backend.Fetch(ctx, name, w)
	if err != nil {
		var ioErr *utils.IOError
		if errors.As(err, &ioErr) {
			return n, "", ioErr
		}
		return n, "", utils.NewTransferError(utils.PhaseDownload, err)
	}
	if err := outFile.Close(); err != nil {
		return n, "", &utils.IOError{Op: "close", Path: outputPath, Err: err}
	}
	return n, hasher.Sum(), nil
}
