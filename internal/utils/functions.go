package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ParseSize accepts plain byte counts as well as "10KB", "4MiB", "1G".
func ParseSize(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty size")
	}
	if strings.HasPrefix(value, "-") {
		return 0, fmt.Errorf("invalid size %q: must not be negative", value)
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}
	return int64(n), nil
}

func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed == 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed
	formatted := FormatBytes(uint64(bps))
	return formatted + "/s"
}

// RemoteName is the server-side name a local file is stored under.
func RemoteName(path string) string {
	return filepath.Base(path)
}

// DefaultOutputPath keeps downloads from overwriting the local source file.
func DefaultOutputPath(downloadPath string) string {
	return downloadPath + DownloadSuffix
}

// CleanDownloads removes leftover download outputs in dir and returns the removed paths.
func CleanDownloads(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), DownloadSuffix) {
			continue
		}
		filePath := filepath.Join(dir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			return removed, err
		}
		removed = append(removed, filePath)
	}
	return removed, nil
}

func (c RunConfig) Validate() error {
	if c.GeneratePath == "" && c.UploadPath == "" && c.DownloadPath == "" {
		return ErrNoAction
	}
	if (c.UploadPath != "" || c.DownloadPath != "") && c.Server == "" {
		return ErrNoServer
	}
	if c.GenerateSize < 0 {
		return fmt.Errorf("invalid size %d: must not be negative", c.GenerateSize)
	}
	if c.Iterations <= 0 {
		return fmt.Errorf("invalid iteration count %d: must be positive", c.Iterations)
	}
	if c.Chunked && c.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d: must be positive", c.ChunkSize)
	}
	if c.ChunkRetries < 0 {
		return fmt.Errorf("invalid chunk retry count %d", c.ChunkRetries)
	}
	switch c.UploadMode {
	case "", UploadModeMultipart, UploadModePut:
	default:
		return fmt.Errorf("invalid upload mode %q (use %s or %s)", c.UploadMode, UploadModeMultipart, UploadModePut)
	}
	return nil
}

// WithDefaults fills zero values with the tool defaults.
func (c RunConfig) WithDefaults() RunConfig {
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.UploadMode == "" {
		c.UploadMode = UploadModeMultipart
	}
	if c.HTTPClientConfig.Timeout == 0 {
		c.HTTPClientConfig.Timeout = DefaultTimeout
	}
	if c.DownloadPath != "" && c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath(c.DownloadPath)
	}
	return c
}
