package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/digest"
	"github.com/tanq16/xferbench/internal/utils"
)

type State int

const (
	StatePlanning State = iota
	StateFetching
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateFetching:
		return "fetching"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ChunkedDownload fetches one object as a sequence of range requests. Chunks
// are requested and written strictly in offset order; the first chunk that
// fails after its retries moves the download to StateFailed and the partial
// output is left on disk.
type ChunkedDownload struct {
	backend    Backend
	name       string
	outputPath string
	chunkSize  int64
	retries    int
	backoff    time.Duration

	state   State
	history []State
	plan    *ChunkPlan
	next    int
	written int64
	hasher  *digest.Hasher
	err     error
}

func NewChunkedDownload(backend Backend, name, outputPath string, chunkSize int64, retries int, backoff time.Duration) *ChunkedDownload {
	return &ChunkedDownload{
		backend:    backend,
		name:       name,
		outputPath: outputPath,
		chunkSize:  chunkSize,
		retries:    max(retries, 0),
		backoff:    backoff,
		state:      StatePlanning,
		history:    []State{StatePlanning},
		hasher:     digest.New(),
	}
}

func (d *ChunkedDownload) State() State     { return d.state }
func (d *ChunkedDownload) History() []State { return d.history }
func (d *ChunkedDownload) Plan() *ChunkPlan { return d.plan }
func (d *ChunkedDownload) Written() int64   { return d.written }
func (d *ChunkedDownload) Digest() string   { return d.hasher.Sum() }
func (d *ChunkedDownload) Err() error       { return d.err }
func (d *ChunkedDownload) NextChunk() int   { return d.next }

func (d *ChunkedDownload) transition(to State) {
	log.Debug().Str("op", "transfer/chunked").Msgf("%s: %s -> %s", d.name, d.state, to)
	d.state = to
	d.history = append(d.history, to)
}

func (d *ChunkedDownload) fail(err error) error {
	d.err = err
	d.transition(StateFailed)
	return err
}

// Run drives the download to a terminal state and returns the terminal error, if any.
func (d *ChunkedDownload) Run(ctx context.Context) error {
	if d.state != StatePlanning {
		return fmt.Errorf("chunked download already %s", d.state)
	}
	total, err := d.backend.Probe(ctx, d.name)
	if err != nil {
		return d.fail(utils.NewTransferError(utils.PhaseProbe, fmt.Errorf("%w: %v", utils.ErrSizeUnknown, err)))
	}
	plan, err := NewChunkPlan(total, d.chunkSize)
	if err != nil {
		return d.fail(utils.NewTransferError(utils.PhaseProbe, err))
	}
	d.plan = plan
	log.Debug().Str("op", "transfer/chunked").Msgf("%s: %d bytes in %d chunks of %d", d.name, plan.Total, plan.Len(), plan.ChunkSize)

	file, err := os.OpenFile(d.outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return d.fail(&utils.IOError{Op: "create", Path: d.outputPath, Err: err})
	}
	defer file.Close()

	if plan.Len() > 0 {
		d.transition(StateFetching)
	}
	for d.state == StateFetching {
		if err := d.step(ctx, file); err != nil {
			return err
		}
	}
	if d.state == StatePlanning {
		// empty object: nothing to fetch
		d.complete()
	}
	if d.state == StateFailed {
		return d.err
	}
	if err := file.Close(); err != nil {
		d.err = &utils.IOError{Op: "close", Path: d.outputPath, Err: err}
		d.transition(StateFailed)
		return d.err
	}
	return nil
}

// step fetches the current chunk and advances the machine by one transition.
func (d *ChunkedDownload) step(ctx context.Context, file *os.File) error {
	chunk := d.plan.Range(d.next)
	if err := ctx.Err(); err != nil {
		return d.fail(&utils.TransferError{Phase: utils.PhaseDownload, Chunk: chunk.Index, Err: err})
	}
	n, err := d.fetchChunk(ctx, file, chunk)
	if err != nil {
		var ioErr *utils.IOError
		if errors.As(err, &ioErr) {
			return d.fail(ioErr)
		}
		return d.fail(&utils.TransferError{Phase: utils.PhaseDownload, Chunk: chunk.Index, Err: err})
	}
	d.written += n
	d.next++
	log.Debug().Str("op", "transfer/chunked").Msgf("%s: chunk %d/%d done (%d of %d bytes)", d.name, d.next, d.plan.Len(), d.written, d.plan.Total)
	if d.next < d.plan.Len() {
		d.transition(StateFetching)
		return nil
	}
	d.complete()
	return nil
}

// fetchChunk writes one chunk at its offset, retrying the same range up to
// d.retries times. The hash state is rolled back before each retry.
func (d *ChunkedDownload) fetchChunk(ctx context.Context, file *os.File, chunk ChunkRange) (int64, error) {
	checkpoint, err := d.hasher.Checkpoint()
	if err != nil {
		return 0, err
	}
	var lastErr error
	for attempt := range d.retries + 1 {
		if attempt > 0 {
			log.Warn().Str("op", "transfer/chunked").Msgf("Retrying chunk %d of %s (attempt %d/%d): %v", chunk.Index, d.name, attempt+1, d.retries+1, lastErr)
			if err := d.hasher.Rewind(checkpoint); err != nil {
				return 0, err
			}
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * d.backoff):
			}
		}
		w := io.MultiWriter(fileWriter{w: io.NewOffsetWriter(file, chunk.Start), path: d.outputPath}, d.hasher)
		n, err := d.backend.FetchRange(ctx, d.name, chunk, w)
		if err == nil {
			return n, nil
		}
		lastErr = err
		var ioErr *utils.IOError
		if errors.As(err, &ioErr) {
			return n, err
		}
	}
	return 0, lastErr
}

func (d *ChunkedDownload) complete() {
	if d.written != d.plan.Total {
		d.fail(utils.NewTransferError(utils.PhaseDownload,
			fmt.Errorf("%w: expected %d bytes, wrote %d", utils.ErrLengthMismatch, d.plan.Total, d.written)))
		return
	}
	d.transition(StateCompleted)
}
