package payload

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/digest"
	"github.com/tanq16/xferbench/internal/utils"
)

const (
	blockSize = 1024
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

type Result struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Digest string `yaml:"digest"`
	Seed   uint64 `yaml:"seed"`
	Reused bool   `yaml:"reused"`
}

// Generate writes size bytes of alphanumeric content to path and returns its digest.
// An existing regular file of exactly size bytes is kept and only hashed; with
// a non-zero seed it is kept only if it already holds that seed's content.
// A zero seed picks a random one.
func Generate(path string, size int64, seed uint64) (*Result, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid size %d: must not be negative", size)
	}
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() && info.Size() == size {
		sum, _, err := digest.File(path)
		if err != nil {
			return nil, err
		}
		if seed == 0 || digest.Equal(sum, seededDigest(size, seed)) {
			log.Info().Str("op", "payload/generate").Msgf("%s already exists with the correct size of %d bytes", path, size)
			return &Result{Path: path, Size: size, Digest: sum, Seed: seed, Reused: true}, nil
		}
		log.Debug().Str("op", "payload/generate").Msgf("%s does not hold the content of seed %d, regenerating", path, seed)
	}
	if seed == 0 {
		seed = rand.Uint64()
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, &utils.IOError{Op: "create", Path: path, Err: err}
	}
	hasher := digest.New()
	if err := fill(io.MultiWriter(file, hasher), size, seed); err != nil {
		file.Close()
		return nil, &utils.IOError{Op: "write", Path: path, Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, &utils.IOError{Op: "sync", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return nil, &utils.IOError{Op: "close", Path: path, Err: err}
	}
	log.Info().Str("op", "payload/generate").Msgf("Generated file %s (%d bytes)", path, size)
	return &Result{Path: path, Size: size, Digest: hasher.Sum(), Seed: seed}, nil
}

func seededDigest(size int64, seed uint64) string {
	hasher := digest.New()
	fill(hasher, size, seed)
	return hasher.Sum()
}

// fill writes exactly size bytes produced by a PCG stream seeded with seed.
func fill(w io.Writer, size int64, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	block := make([]byte, blockSize)
	for written := int64(0); written < size; {
		n := int(min(int64(blockSize), size-written))
		for i := range n {
			block[i] = alphabet[rng.IntN(len(alphabet))]
		}
		if _, err := w.Write(block[:n]); err != nil {
			return err
		}
		written += int64(n)
	}
	return nil
}
