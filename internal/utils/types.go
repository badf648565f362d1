package utils

import "time"

type OperationKind string

const (
	OpUpload   OperationKind = "upload"
	OpDownload OperationKind = "download"
)

type S3Config struct {
	Profile   string
	Region    string
	Endpoint  string
	PathStyle bool
}

// RunConfig is the fully resolved configuration for one benchmark run.
type RunConfig struct {
	Name             string
	Server           string
	GeneratePath     string
	GenerateSize     int64
	Seed             uint64
	UploadPath       string
	UploadMode       string
	SkipDelete       bool
	DownloadPath     string
	OutputPath       string
	Chunked          bool
	ChunkSize        int64
	ChunkRetries     int
	RetryBackoff     time.Duration
	Iterations       int
	ExpectDigest     string
	ReportPath       string
	HTTPClientConfig HTTPClientConfig
	S3               S3Config
}

// TransferTask describes a single upload or download.
type TransferTask struct {
	Kind       OperationKind
	Path       string // local source for uploads, local reference for downloads
	Name       string // remote object name
	OutputPath string
	Server     string
	Chunked    bool
	ChunkSize  int64
	Iteration  int
}

type TransferResult struct {
	Kind    OperationKind `yaml:"kind"`
	Name    string        `yaml:"name"`
	Chunked bool          `yaml:"chunked,omitempty"`
	Chunks  int           `yaml:"chunks,omitempty"`
	Bytes   int64         `yaml:"bytes"`
	Elapsed time.Duration `yaml:"elapsed"`
	Digest  string        `yaml:"digest,omitempty"`
	Success bool          `yaml:"success"`
	Err     error         `yaml:"-"`
	Error   string        `yaml:"error,omitempty"`
}

func (r *TransferResult) Fail(err error) {
	r.Success = false
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// PlanEntry is one run in a batch plan file. Unset fields inherit from the base configuration.
type PlanEntry struct {
	Name         string  `yaml:"name"`
	Server       *string `yaml:"server"`
	Generate     *string `yaml:"generate"`
	Size         *string `yaml:"size"`
	Seed         *uint64 `yaml:"seed"`
	Upload       *string `yaml:"upload"`
	UploadMode   *string `yaml:"upload_mode"`
	SkipDelete   *bool   `yaml:"skip_delete"`
	Download     *string `yaml:"download"`
	Output       *string `yaml:"output"`
	Chunked      *bool   `yaml:"chunked"`
	ChunkSize    *string `yaml:"chunk_size"`
	ChunkRetries *int    `yaml:"chunk_retries"`
	Iterations   *int    `yaml:"iterations"`
	Expect       *string `yaml:"expect"`
	Report       *string `yaml:"report"`
}

type Plan struct {
	Runs []PlanEntry `yaml:"runs"`
}
