package harness

import (
	"time"

	"github.com/tanq16/xferbench/internal/payload"
	"github.com/tanq16/xferbench/internal/utils"
)

type Verification string

const (
	VerifyMatch    Verification = "match"
	VerifyMismatch Verification = "mismatch"
	VerifySkipped  Verification = "skipped"
	VerifyNotRun   Verification = "not-run"
)

// IterationResult is the outcome of one upload/download/verify cycle.
type IterationResult struct {
	Index        int                   `yaml:"index"`
	Upload       *utils.TransferResult `yaml:"upload,omitempty"`
	Download     *utils.TransferResult `yaml:"download,omitempty"`
	Verification Verification          `yaml:"verification"`
	Expected     string                `yaml:"expected,omitempty"`
	FailedPhase  string                `yaml:"failed_phase,omitempty"`
	Cause        utils.FailureCause    `yaml:"cause"`
	Err          error                 `yaml:"-"`
	Error        string                `yaml:"error,omitempty"`
	Elapsed      time.Duration         `yaml:"elapsed"`
}

func (r IterationResult) Succeeded() bool {
	return r.Err == nil
}

func (r *IterationResult) fail(phase string, err error) {
	r.FailedPhase = phase
	r.Err = err
	r.Error = err.Error()
	r.Cause = utils.Classify(err)
}

// IterationReport aggregates all iterations of a run. Only the Harness writes to it.
type IterationReport struct {
	RunID             string            `yaml:"run_id"`
	Name              string            `yaml:"name,omitempty"`
	Server            string            `yaml:"server,omitempty"`
	StartedAt         time.Time         `yaml:"started_at"`
	Generated         *payload.Result   `yaml:"generated,omitempty"`
	Attempted         int               `yaml:"attempted"`
	Succeeded         int               `yaml:"succeeded"`
	Failed            int               `yaml:"failed"`
	TransferFailures  int               `yaml:"transfer_failures"`
	IntegrityFailures int               `yaml:"integrity_failures"`
	IOFailures        int               `yaml:"io_failures"`
	OtherFailures     int               `yaml:"other_failures"`
	BytesUploaded     int64             `yaml:"bytes_uploaded"`
	BytesDownloaded   int64             `yaml:"bytes_downloaded"`
	Duration          time.Duration     `yaml:"duration"`
	AverageUpload     time.Duration     `yaml:"average_upload"`
	AverageDownload   time.Duration     `yaml:"average_download"`
	Iterations        []IterationResult `yaml:"iterations"`
	Finalized         bool              `yaml:"-"`

	uploadTotal   time.Duration
	uploadCount   int
	downloadTotal time.Duration
	downloadCount int
}

func (r *IterationReport) record(it IterationResult) {
	r.Attempted++
	if it.Succeeded() {
		r.Succeeded++
	} else {
		r.Failed++
		switch it.Cause {
		case utils.CauseTransfer:
			r.TransferFailures++
		case utils.CauseIntegrity:
			r.IntegrityFailures++
		case utils.CauseIO:
			r.IOFailures++
		default:
			r.OtherFailures++
		}
	}
	if it.Upload != nil {
		r.BytesUploaded += it.Upload.Bytes
		if it.Upload.Success {
			r.uploadTotal += it.Upload.Elapsed
			r.uploadCount++
		}
	}
	if it.Download != nil {
		r.BytesDownloaded += it.Download.Bytes
		if it.Download.Success {
			r.downloadTotal += it.Download.Elapsed
			r.downloadCount++
		}
	}
	r.Duration += it.Elapsed
	r.Iterations = append(r.Iterations, it)
}

func (r *IterationReport) finalize() {
	if r.uploadCount > 0 {
		r.AverageUpload = r.uploadTotal / time.Duration(r.uploadCount)
	}
	if r.downloadCount > 0 {
		r.AverageDownload = r.downloadTotal / time.Duration(r.downloadCount)
	}
	r.Finalized = true
}

func (r *IterationReport) TotalBytes() int64 {
	return r.BytesUploaded + r.BytesDownloaded
}

// OK reports whether the run had no failed iterations.
func (r *IterationReport) OK() bool {
	return r.Failed == 0
}
