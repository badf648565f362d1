package digest

import (
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/tanq16/xferbench/internal/utils"
)

const Algorithm = "sha256"

// Hasher is a streaming SHA-256 digest that also counts the bytes it has seen.
type Hasher struct {
	h hash.Hash
	n int64
}

func New() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, _ := h.h.Write(p)
	h.n += int64(n)
	return n, nil
}

func (h *Hasher) Size() int64 {
	return h.n
}

// Sum returns the hex digest of everything written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Checkpoint captures the hash state so a partially hashed chunk can be rolled back.
func (h *Hasher) Checkpoint() (Checkpoint, error) {
	state, err := h.h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{state: state, n: h.n}, nil
}

func (h *Hasher) Rewind(cp Checkpoint) error {
	if err := h.h.(encoding.BinaryUnmarshaler).UnmarshalBinary(cp.state); err != nil {
		return fmt.Errorf("error restoring hash state: %w", err)
	}
	h.n = cp.n
	return nil
}

type Checkpoint struct {
	state []byte
	n     int64
}

func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Reader hashes r until EOF. Read failures come back as *utils.IOError.
func Reader(r io.Reader, name string) (string, int64, error) {
	h := New()
	buffer := make([]byte, utils.DefaultBufferSize)
	if _, err := io.CopyBuffer(h, r, buffer); err != nil {
		return "", h.Size(), &utils.IOError{Op: "read", Path: name, Err: err}
	}
	return h.Sum(), h.Size(), nil
}

func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, &utils.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return Reader(f, path)
}

// Normalize lower-cases a hex digest and strips an optional "sha256:" prefix.
func Normalize(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	return strings.TrimPrefix(d, Algorithm+":")
}

func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
