package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/utils"
)

// HTTPBackend talks to a plain file server:
//
//	DELETE {server}/{name}
//	POST   {server}/upload          multipart field "file" (or PUT {server}/{name})
//	HEAD   {server}/download/{name}
//	GET    {server}/download/{name} optionally with Range
type HTTPBackend struct {
	base       *url.URL
	client     utils.HTTPDoer
	uploadMode string
}

func NewHTTPBackend(server string, cfg utils.HTTPClientConfig, uploadMode string) (*HTTPBackend, error) {
	return NewHTTPBackendWithClient(server, utils.NewXferHTTPClient(cfg), uploadMode)
}

// NewHTTPBackendWithClient sends every request through client.
func NewHTTPBackendWithClient(server string, client utils.HTTPDoer, uploadMode string) (*HTTPBackend, error) {
	parsed, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedServer, parsed.Scheme)
	}
	if uploadMode == "" {
		uploadMode = utils.UploadModeMultipart
	}
	return &HTTPBackend{
		base:       parsed,
		client:     client,
		uploadMode: uploadMode,
	}, nil
}

func (b *HTTPBackend) endpoint(elem ...string) string {
	return b.base.JoinPath(elem...).String()
}

func (b *HTTPBackend) downloadURL(name string) string {
	return b.endpoint("download", name)
}

func (b *HTTPBackend) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.endpoint(name), nil)
	if err != nil {
		return fmt.Errorf("error creating DELETE request: %v", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return statusError(resp.StatusCode, name)
	}
	return nil
}

func (b *HTTPBackend) Upload(ctx context.Context, name, path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &utils.IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, &utils.IOError{Op: "stat", Path: path, Err: err}
	}
	size := info.Size()

	var req *http.Request
	switch b.uploadMode {
	case utils.UploadModePut:
		req, err = http.NewRequestWithContext(ctx, http.MethodPut, b.endpoint(name), file)
		if err != nil {
			return 0, fmt.Errorf("error creating PUT request: %v", err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.ContentLength = size
	default:
		prefix, suffix, contentType, err := multipartEnvelope(name)
		if err != nil {
			return 0, err
		}
		body := io.MultiReader(bytes.NewReader(prefix), file, bytes.NewReader(suffix))
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint("upload"), body)
		if err != nil {
			return 0, fmt.Errorf("error creating POST request: %v", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = int64(len(prefix)) + size + int64(len(suffix))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, statusError(resp.StatusCode, name)
	}
	log.Debug().Str("op", "transfer/http").Msgf("Upload of %s accepted with status %d", name, resp.StatusCode)
	return size, nil
}

// multipartEnvelope returns the bytes surrounding the file content of a
// single-part form so the body can be streamed with a known length.
func multipartEnvelope(name string) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if _, err := mw.CreateFormFile("file", name); err != nil {
		return nil, nil, "", fmt.Errorf("error creating multipart form: %v", err)
	}
	prefix = bytes.Clone(buf.Bytes())
	buf.Reset()
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("error closing multipart form: %v", err)
	}
	return prefix, bytes.Clone(buf.Bytes()), mw.FormDataContentType(), nil
}

// Probe asks for the object size with HEAD and falls back to a one-byte
// range request when HEAD gives no usable Content-Length.
func (b *HTTPBackend) Probe(ctx context.Context, name string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.downloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating HEAD request: %v", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
			size, err := strconv.ParseInt(contentLength, 10, 64)
			if err == nil && size >= 0 {
				return size, nil
			}
		}
	} else if resp.StatusCode == http.StatusNotFound {
		return 0, statusError(resp.StatusCode, name)
	}
	log.Debug().Str("op", "transfer/http").Msgf("HEAD gave no size for %s (status %d), probing with range request", name, resp.StatusCode)
	return b.probeRange(ctx, name)
}

func (b *HTTPBackend) probeRange(ctx context.Context, name string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.downloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating GET request: %v", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		if _, _, total, err := parseContentRange(resp.Header.Get("Content-Range")); err == nil && total >= 0 {
			return total, nil
		}
	case http.StatusOK:
		if resp.ContentLength >= 0 {
			return resp.ContentLength, nil
		}
	default:
		return 0, statusError(resp.StatusCode, name)
	}
	return 0, utils.ErrSizeUnknown
}

func (b *HTTPBackend) Fetch(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.downloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating GET request: %v", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp.StatusCode, name)
	}
	buffer := make([]byte, utils.DefaultBufferSize)
	n, err := io.CopyBuffer(w, resp.Body, buffer)
	if err != nil {
		return n, err
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: server advertised %d bytes, received %d", utils.ErrLengthMismatch, resp.ContentLength, n)
	}
	return n, nil
}

func (b *HTTPBackend) FetchRange(ctx context.Context, name string, r ChunkRange, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.downloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("error creating GET request: %v", err)
	}
	req.Header.Set("Range", r.Header())
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return 0, statusError(resp.StatusCode, name)
	}
	if err := checkContentRange(resp.Header.Get("Content-Range"), r); err != nil {
		return 0, err
	}
	return copyRange(w, resp.Body, r)
}

func statusError(code int, name string) error {
	var detail string
	switch code {
	case http.StatusNotFound:
		detail = fmt.Sprintf("%s does not exist on the server", name)
	case http.StatusConflict:
		detail = fmt.Sprintf("%s already exists", name)
	case http.StatusLengthRequired:
		detail = "content length must be defined"
	case http.StatusRequestEntityTooLarge:
		detail = fmt.Sprintf("%s is too large for the server", name)
	case http.StatusRequestedRangeNotSatisfiable:
		detail = "requested range not satisfiable"
	case http.StatusInsufficientStorage:
		detail = "insufficient space on the server"
	default:
		detail = http.StatusText(code)
	}
	return fmt.Errorf("%w %d: %s", utils.ErrUnexpectedStatus, code, detail)
}
