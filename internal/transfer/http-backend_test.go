package transfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/xferbench/internal/transfer/transfertest"
	"github.com/tanq16/xferbench/internal/utils"
)

func newTestBackend(t *testing.T, srv *transfertest.Server, mode string) *HTTPBackend {
	t.Helper()
	backend, err := NewHTTPBackend(srv.URL, utils.HTTPClientConfig{}, mode)
	require.NoError(t, err)
	return backend
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestNewHTTPBackend_RejectsOtherSchemes(t *testing.T) {
	_, err := NewHTTPBackend("ftp://example.com", utils.HTTPClientConfig{}, "")
	assert.ErrorIs(t, err, utils.ErrUnsupportedServer)
}

func TestHTTPBackend_UploadModes(t *testing.T) {
	for _, mode := range []string{utils.UploadModeMultipart, utils.UploadModePut} {
		t.Run(mode, func(t *testing.T) {
			srv := transfertest.NewServer()
			defer srv.Close()
			backend := newTestBackend(t, srv, mode)

			data := bytes.Repeat([]byte("payload-"), 500)
			path := writeTemp(t, "file name.bin", data)

			n, err := backend.Upload(context.Background(), "file name.bin", path)
			require.NoError(t, err)
			assert.Equal(t, int64(len(data)), n)

			stored, ok := srv.File("file name.bin")
			require.True(t, ok)
			assert.Equal(t, data, stored)
		})
	}
}

func TestHTTPBackend_UploadEmptyFile(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	backend := newTestBackend(t, srv, "")

	path := writeTemp(t, "empty.bin", nil)
	n, err := backend.Upload(context.Background(), "empty.bin", path)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, ok := srv.File("empty.bin")
	require.True(t, ok)
	assert.Empty(t, stored)
}

func TestHTTPBackend_UploadRejected(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	srv.FailNextUploads(1)
	backend := newTestBackend(t, srv, "")

	path := writeTemp(t, "a.bin", []byte("abc"))
	_, err := backend.Upload(context.Background(), "a.bin", path)
	assert.ErrorIs(t, err, utils.ErrUnexpectedStatus)
}

func TestHTTPBackend_UploadMissingFileIsIOError(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	backend := newTestBackend(t, srv, "")

	_, err := backend.Upload(context.Background(), "x", filepath.Join(t.TempDir(), "missing"))
	var ioErr *utils.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestHTTPBackend_Delete(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	srv.Put("a.bin", []byte("abc"))
	backend := newTestBackend(t, srv, "")

	require.NoError(t, backend.Delete(context.Background(), "a.bin"))
	_, ok := srv.File("a.bin")
	assert.False(t, ok)
	// deleting a missing object is not an error
	assert.NoError(t, backend.Delete(context.Background(), "a.bin"))
}

func TestHTTPBackend_Probe(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	srv.Put("a.bin", make([]byte, 300))
	srv.Put("empty.bin", nil)
	backend := newTestBackend(t, srv, "")

	size, err := backend.Probe(context.Background(), "a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(300), size)

	size, err = backend.Probe(context.Background(), "empty.bin")
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = backend.Probe(context.Background(), "missing.bin")
	assert.ErrorIs(t, err, utils.ErrUnexpectedStatus)
}

func TestHTTPBackend_ProbeFallsBackToRangeRequest(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	srv.DisableHead()
	srv.Put("a.bin", make([]byte, 250))
	srv.Put("empty.bin", nil)
	backend := newTestBackend(t, srv, "")

	size, err := backend.Probe(context.Background(), "a.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(250), size)
	assert.Equal(t, []string{"bytes=0-0"}, srv.Ranges())

	size, err = backend.Probe(context.Background(), "empty.bin")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestHTTPBackend_Fetch(t *testing.T) {
	srv := transfertest.NewServer()
	defer srv.Close()
	data := []byte("hello, whole file")
	srv.Put("a.bin", data)
	backend := newTestBackend(t, srv, "")

	var buf bytes.Buffer
	n, err := backend.Fetch(context.Background(), "a.bin", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, buf.Bytes())

	_, err = backend.Fetch(context.Background(), "missing.bin", &buf)
	assert.ErrorIs(t, err, utils.ErrUnexpectedStatus)
}

func TestHTTPBackend_FetchRangeFaults(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	r := ChunkRange{Index: 1, Start: 100, End: 199}

	tests := []struct {
		name    string
		fault   transfertest.Fault
		wantErr error
	}{
		{name: "status", fault: transfertest.FaultStatus, wantErr: utils.ErrUnexpectedStatus},
		{name: "truncated", fault: transfertest.FaultTruncate, wantErr: utils.ErrLengthMismatch},
		{name: "wrong range", fault: transfertest.FaultWrongRange, wantErr: utils.ErrRangeMismatch},
		{name: "range ignored", fault: transfertest.FaultFullBody, wantErr: utils.ErrUnexpectedStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := transfertest.NewServer()
			defer srv.Close()
			srv.Put("a.bin", data)
			srv.InjectRangeFault(0, tt.fault)
			backend := newTestBackend(t, srv, "")

			var buf bytes.Buffer
			_, err := backend.FetchRange(context.Background(), "a.bin", r, &buf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	t.Run("clean", func(t *testing.T) {
		srv := transfertest.NewServer()
		defer srv.Close()
		srv.Put("a.bin", data)
		backend := newTestBackend(t, srv, "")

		var buf bytes.Buffer
		n, err := backend.FetchRange(context.Background(), "a.bin", r, &buf)
		require.NoError(t, err)
		assert.Equal(t, int64(100), n)
		assert.Equal(t, data[100:200], buf.Bytes())
		assert.Equal(t, []string{"bytes=100-199"}, srv.Ranges())
	})
}

func TestHTTPBackend_TransportError(t *testing.T) {
	srv := transfertest.NewServer()
	url := srv.URL
	srv.Close()

	backend, err := NewHTTPBackend(url, utils.HTTPClientConfig{}, "")
	require.NoError(t, err)
	_, err = backend.Probe(context.Background(), "a.bin")
	assert.Error(t, err)
}

func TestMultipartEnvelope(t *testing.T) {
	prefix, suffix, contentType, err := multipartEnvelope("a.bin")
	require.NoError(t, err)
	assert.Contains(t, string(prefix), `name="file"; filename="a.bin"`)
	assert.Contains(t, contentType, "multipart/form-data; boundary=")
	assert.Contains(t, string(suffix), "--\r\n")
}
