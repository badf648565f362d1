package transfer

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/tanq16/xferbench/internal/utils"
)

// Backend speaks the wire protocol of one kind of storage server.
// Write failures on w are reported as *utils.IOError by the caller's writer.
type Backend interface {
	Delete(ctx context.Context, name string) error
	Upload(ctx context.Context, name, path string) (int64, error)
	// Probe returns the total size of the remote object.
	Probe(ctx context.Context, name string) (int64, error)
	// Fetch streams the whole object into w and verifies the advertised length.
	Fetch(ctx context.Context, name string, w io.Writer) (int64, error)
	// FetchRange streams exactly r into w and verifies the returned range.
	FetchRange(ctx context.Context, name string, r ChunkRange, w io.Writer) (int64, error)
}

// NewBackend picks a backend from the server URL scheme.
func NewBackend(ctx context.Context, cfg utils.RunConfig) (Backend, error) {
	parsed, err := url.Parse(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	switch parsed.Scheme {
	case "http", "https":
		return NewHTTPBackend(cfg.Server, cfg.HTTPClientConfig, cfg.UploadMode)
	case "s3":
		return NewS3Backend(ctx, cfg.Server, cfg.S3, cfg.HTTPClientConfig)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedServer, parsed.Scheme)
	}
}

// fileWriter tags write failures as local IO errors so they are not
// mistaken for transport failures.
type fileWriter struct {
	w    io.Writer
	path string
}

func (f fileWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, &utils.IOError{Op: "write", Path: f.path, Err: err}
	}
	return n, nil
}
