package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/digest"
	"github.com/tanq16/xferbench/internal/payload"
	"github.com/tanq16/xferbench/internal/transfer"
	"github.com/tanq16/xferbench/internal/utils"
)

type Observer func(it IterationResult, total int)

type Option func(*Harness)

func WithObserver(o Observer) Option {
	return func(h *Harness) { h.observer = o }
}

func WithRunID(id string) Option {
	return func(h *Harness) { h.runID = id }
}

// Harness runs the configured iterations strictly one after another.
type Harness struct {
	cfg      utils.RunConfig
	adapter  *transfer.Adapter
	observer Observer
	runID    string
}

// New validates cfg and prepares a harness. backend may be nil when the run
// only generates a payload.
func New(cfg utils.RunConfig, backend transfer.Backend, opts ...Option) (*Harness, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	needsBackend := cfg.UploadPath != "" || cfg.DownloadPath != ""
	if needsBackend && backend == nil {
		return nil, fmt.Errorf("no backend configured for %s", cfg.Server)
	}
	h := &Harness{cfg: cfg, runID: uuid.NewString()}
	if backend != nil {
		h.adapter = transfer.NewAdapter(backend, transfer.AdapterOptions{
			ChunkRetries: cfg.ChunkRetries,
			RetryBackoff: cfg.RetryBackoff,
			SkipDelete:   cfg.SkipDelete,
		})
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Harness) Config() utils.RunConfig {
	return h.cfg
}

// Run executes all iterations. Iteration failures are recorded in the report
// and never abort the loop. A generation failure is fatal and returns an
// error wrapping utils.ErrGenerationFailed before any iteration runs.
func (h *Harness) Run(ctx context.Context) (*IterationReport, error) {
	report := &IterationReport{
		RunID:     h.runID,
		Name:      h.cfg.Name,
		Server:    h.cfg.Server,
		StartedAt: time.Now(),
	}
	defer report.finalize()

	reference := digest.Normalize(h.cfg.ExpectDigest)
	generated := false
	if h.cfg.GeneratePath != "" {
		res, err := payload.Generate(h.cfg.GeneratePath, h.cfg.GenerateSize, h.cfg.Seed)
		if err != nil {
			log.Error().Str("op", "harness/run").Err(err).Msg("Payload generation failed")
			return report, fmt.Errorf("%w: %w", utils.ErrGenerationFailed, err)
		}
		report.Generated = res
		generated = true
		if reference == "" {
			reference = res.Digest
		}
		log.Info().Str("op", "harness/run").Msgf("SHA256: %s", res.Digest)
	}
	if h.adapter == nil {
		return report, nil
	}

	for i := range h.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("op", "harness/run").Msgf("Run cancelled after %d of %d iterations", i, h.cfg.Iterations)
			return report, err
		}
		it := h.runIteration(ctx, i, &reference, generated)
		report.record(it)
		if h.observer != nil {
			h.observer(it, h.cfg.Iterations)
		}
	}
	log.Info().Str("op", "harness/run").Msgf("Run %s finished: %d succeeded, %d failed", report.RunID, report.Succeeded, report.Failed)
	return report, nil
}

// runIteration performs upload, download and verification in order. The
// reference digest is replaced by the upload source's digest after a
// successful upload unless it was pinned by generation or --expect.
func (h *Harness) runIteration(ctx context.Context, index int, reference *string, generated bool) IterationResult {
	start := time.Now()
	it := IterationResult{Index: index, Verification: VerifyNotRun, Cause: utils.CauseNone}
	pinned := generated || h.cfg.ExpectDigest != ""

	if h.cfg.UploadPath != "" {
		var sourceDigest string
		if !pinned {
			sum, _, err := digest.File(h.cfg.UploadPath)
			if err != nil {
				it.fail("upload", err)
				it.Elapsed = time.Since(start)
				return it
			}
			sourceDigest = sum
		}
		task := utils.TransferTask{
			Kind:      utils.OpUpload,
			Path:      h.cfg.UploadPath,
			Name:      utils.RemoteName(h.cfg.UploadPath),
			Server:    h.cfg.Server,
			Iteration: index,
		}
		res := h.adapter.Upload(ctx, task)
		it.Upload = &res
		if !res.Success {
			it.fail("upload", res.Err)
			it.Elapsed = time.Since(start)
			return it
		}
		if sourceDigest != "" {
			*reference = sourceDigest
		}
	}

	if h.cfg.DownloadPath != "" {
		task := utils.TransferTask{
			Kind:       utils.OpDownload,
			Path:       h.cfg.DownloadPath,
			Name:       utils.RemoteName(h.cfg.DownloadPath),
			OutputPath: h.cfg.OutputPath,
			Server:     h.cfg.Server,
			Chunked:    h.cfg.Chunked,
			ChunkSize:  h.cfg.ChunkSize,
			Iteration:  index,
		}
		res := h.adapter.Download(ctx, task)
		it.Download = &res
		if !res.Success {
			it.fail("download", res.Err)
			it.Elapsed = time.Since(start)
			return it
		}
		it.Expected = *reference
		switch {
		case *reference == "":
			it.Verification = VerifySkipped
		case digest.Equal(*reference, res.Digest):
			it.Verification = VerifyMatch
		default:
			it.Verification = VerifyMismatch
			it.fail("verify", &utils.IntegrityError{Expected: *reference, Actual: res.Digest})
			log.Error().Str("op", "harness/run").Msgf("Iteration %d: digest mismatch for %s", index+1, task.Name)
		}
	}
	it.Elapsed = time.Since(start)
	return it
}
