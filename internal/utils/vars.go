package utils

import (
	"errors"
	"time"
)

const (
	DefaultChunkSize    = 1024 * 1024 // 1MB
	DefaultBufferSize   = 1024 * 64
	DefaultIterations   = 1
	DefaultGenerateSize = 1024
	DefaultTimeout      = 30 * time.Second
	DefaultRetryBackoff = 500 * time.Millisecond
	DownloadSuffix      = ".download"
	ToolUserAgent       = "xferbench/1.0"
	EnvPrefix           = "XFERBENCH"
)

const (
	UploadModeMultipart = "multipart"
	UploadModePut       = "put"
)

var (
	ErrSizeUnknown       = errors.New("content size could not be determined")
	ErrRangeMismatch     = errors.New("returned range does not match requested range")
	ErrLengthMismatch    = errors.New("content length mismatch")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrGenerationFailed  = errors.New("payload generation failed")
	ErrNoServer          = errors.New("server URL is required for uploading and downloading files")
	ErrNoAction          = errors.New("nothing to do: specify generate, upload or download")
	ErrUnsupportedServer = errors.New("unsupported server scheme")
)
