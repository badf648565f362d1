package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/utils"
)

type AdapterOptions struct {
	ChunkRetries int
	RetryBackoff time.Duration
	SkipDelete   bool
}

// Adapter performs single uploads and downloads against a backend and turns
// their outcome into TransferResults.
type Adapter struct {
	backend Backend
	opts    AdapterOptions
}

func NewAdapter(backend Backend, opts AdapterOptions) *Adapter {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = utils.DefaultRetryBackoff
	}
	return &Adapter{backend: backend, opts: opts}
}

func (a *Adapter) Upload(ctx context.Context, task utils.TransferTask) utils.TransferResult {
	result := utils.TransferResult{Kind: utils.OpUpload, Name: task.Name}
	if !a.opts.SkipDelete {
		if err := a.backend.Delete(ctx, task.Name); err != nil {
			log.Debug().Str("op", "transfer/upload").Err(err).Msgf("Pre-upload delete of %s failed", task.Name)
		}
	}
	log.Info().Str("op", "transfer/upload").Msgf("Start uploading file: %s", task.Path)
	start := time.Now()
	n, err := a.backend.Upload(ctx, task.Name, task.Path)
	result.Elapsed = time.Since(start)
	result.Bytes = n
	if err != nil {
		var ioErr *utils.IOError
		if errors.As(err, &ioErr) {
			result.Fail(ioErr)
		} else {
			result.Fail(utils.NewTransferError(utils.PhaseUpload, err))
		}
		log.Error().Str("op", "transfer/upload").Err(result.Err).Msgf("Error uploading file %s", task.Path)
		return result
	}
	result.Success = true
	log.Info().Str("op", "transfer/upload").Msgf("%s: uploaded %d bytes in %s", task.Name, n, result.Elapsed)
	return result
}

func (a *Adapter) Download(ctx context.Context, task utils.TransferTask) utils.TransferResult {
	result := utils.TransferResult{Kind: utils.OpDownload, Name: task.Name, Chunked: task.Chunked}
	log.Info().Str("op", "transfer/download").Msgf("Start downloading file: %s (chunked = %t)", task.Name, task.Chunked)
	start := time.Now()
	if task.Chunked {
		dl := NewChunkedDownload(a.backend, task.Name, task.OutputPath, task.ChunkSize, a.opts.ChunkRetries, a.opts.RetryBackoff)
		err := dl.Run(ctx)
		result.Elapsed = time.Since(start)
		result.Bytes = dl.Written()
		if dl.Plan() != nil {
			result.Chunks = dl.Plan().Len()
		}
		if err != nil {
			result.Fail(err)
			log.Error().Str("op", "transfer/download").Err(err).Msgf("Chunked download of %s failed after %d of %d bytes", task.Name, dl.Written(), planTotal(dl.Plan()))
			return result
		}
		result.Digest = dl.Digest()
	} else {
		n, sum, err := PerformSimpleDownload(ctx, a.backend, task.Name, task.OutputPath)
		result.Elapsed = time.Since(start)
		result.Bytes = n
		if err != nil {
			result.Fail(err)
			log.Error().Str("op", "transfer/download").Err(err).Msgf("Error downloading file %s", task.Name)
			return result
		}
		result.Digest = sum
	}
	result.Success = true
	log.Info().Str("op", "transfer/download").Msgf("%s: downloaded %d bytes in %s, sha256 %s", task.Name, result.Bytes, result.Elapsed, result.Digest)
	return result
}

func planTotal(p *ChunkPlan) int64 {
	if p == nil {
		return 0
	}
	return p.Total
}
