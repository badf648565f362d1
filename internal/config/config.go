// Package config layers flags, XFERBENCH_* environment variables and an
// optional YAML file into a utils.RunConfig.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tanq16/xferbench/internal/utils"
)

const (
	KeyGenerate      = "generate"
	KeySize          = "size"
	KeySeed          = "seed"
	KeyUpload        = "upload"
	KeyUploadMode    = "upload-mode"
	KeySkipDelete    = "skip-delete"
	KeyDownload      = "download"
	KeyOutput        = "output"
	KeyChunked       = "chunked"
	KeyChunkSize     = "chunk-size"
	KeyChunkRetries  = "chunk-retries"
	KeyRetryBackoff  = "retry-backoff"
	KeyServer        = "server"
	KeyTimeout       = "timeout"
	KeyKATimeout     = "keep-alive-timeout"
	KeyIterations    = "iterations"
	KeyExpect        = "expect"
	KeyReport        = "report"
	KeyInsecure      = "insecure"
	KeyHeader        = "header"
	KeyUserAgent     = "user-agent"
	KeyProxy         = "proxy"
	KeyProxyUsername = "proxy-username"
	KeyProxyPassword = "proxy-password"
	KeyS3Profile     = "s3-profile"
	KeyS3Region      = "s3-region"
	KeyS3Endpoint    = "s3-endpoint"
	KeyS3PathStyle   = "s3-path-style"
	KeyDebug         = "debug"
	KeyName          = "name"
)

// RegisterFlags defines every run flag on fs. The defaults registered here
// are the lowest layer of precedence.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyGenerate, "g", "", "Generate a payload file at this path before the run")
	fs.String(KeySize, fmt.Sprint(utils.DefaultGenerateSize), "Size of the generated payload (eg. 1024, 10MB, 1GiB)")
	fs.Uint64(KeySeed, 0, "Seed for payload content (0 picks a random seed)")
	fs.StringP(KeyUpload, "u", "", "Upload this file to the server on every iteration")
	fs.String(KeyUploadMode, utils.UploadModeMultipart, "Upload mode: multipart or put")
	fs.Bool(KeySkipDelete, false, "Do not delete the remote file before uploading")
	fs.StringP(KeyDownload, "d", "", "Download this remote name on every iteration")
	fs.StringP(KeyOutput, "o", "", "Local path for downloaded data (default <download>.download)")
	fs.BoolP(KeyChunked, "c", false, "Download in ranged chunks")
	fs.String(KeyChunkSize, "1MiB", "Chunk size for chunked downloads")
	fs.Int(KeyChunkRetries, 0, "Retries per failed chunk (0 fails on the first error)")
	fs.Duration(KeyRetryBackoff, utils.DefaultRetryBackoff, "Base backoff between chunk retries")
	fs.StringP(KeyServer, "s", "", "Server base URL (http://, https:// or s3://bucket/prefix)")
	fs.DurationP(KeyTimeout, "t", utils.DefaultTimeout, "Per-request timeout (eg. 5s, 10m)")
	fs.Duration(KeyKATimeout, 90*time.Second, "Keep-alive timeout for client")
	fs.IntP(KeyIterations, "i", utils.DefaultIterations, "Number of iterations")
	fs.String(KeyExpect, "", "Expected SHA-256 digest of the downloaded data")
	fs.String(KeyReport, "", "Write the run report to this file (.yaml or .md)")
	fs.Bool(KeyInsecure, false, "Skip TLS certificate verification")
	fs.StringArrayP(KeyHeader, "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	fs.StringP(KeyUserAgent, "a", utils.ToolUserAgent, "User agent")
	fs.StringP(KeyProxy, "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	fs.String(KeyProxyUsername, "", "Proxy username (if not provided in proxy URL)")
	fs.String(KeyProxyPassword, "", "Proxy password (if not provided in proxy URL)")
	fs.String(KeyS3Profile, "", "AWS profile for s3:// servers")
	fs.String(KeyS3Region, "", "AWS region for s3:// servers")
	fs.String(KeyS3Endpoint, "", "Custom S3 endpoint (eg. a MinIO URL)")
	fs.Bool(KeyS3PathStyle, false, "Use path-style S3 addressing")
	fs.Bool(KeyDebug, false, "Enable debug logging")
}

type Loader struct {
	v *viper.Viper
}

// New binds fs and the environment into a fresh viper instance and reads
// configFile when given. Without one, ./xferbench.yaml is used if present.
func New(fs *pflag.FlagSet, configFile string) (*Loader, error) {
	v := viper.New()
	v.SetEnvPrefix(utils.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("error binding flags: %v", err)
		}
	}
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("xferbench")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("op", "config/load").Msgf("using config file %s", used)
	}
	return &Loader{v: v}, nil
}

func (l *Loader) Debug() bool {
	return l.v.GetBool(KeyDebug)
}

func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// RunConfig resolves the layered values. Defaults for values the caller did
// not set are left to RunConfig.WithDefaults.
func (l *Loader) RunConfig() (utils.RunConfig, error) {
	v := l.v
	size, err := utils.ParseSize(stringOr(v.GetString(KeySize), fmt.Sprint(utils.DefaultGenerateSize)))
	if err != nil {
		return utils.RunConfig{}, fmt.Errorf("invalid %s: %w", KeySize, err)
	}
	chunkSize := int64(0)
	if s := v.GetString(KeyChunkSize); s != "" {
		if chunkSize, err = utils.ParseSize(s); err != nil {
			return utils.RunConfig{}, fmt.Errorf("invalid %s: %w", KeyChunkSize, err)
		}
	}
	httpCfg, err := httpClientConfig(v)
	if err != nil {
		return utils.RunConfig{}, err
	}
	cfg := utils.RunConfig{
		Name:             v.GetString(KeyName),
		Server:           v.GetString(KeyServer),
		GeneratePath:     v.GetString(KeyGenerate),
		GenerateSize:     size,
		Seed:             v.GetUint64(KeySeed),
		UploadPath:       v.GetString(KeyUpload),
		UploadMode:       v.GetString(KeyUploadMode),
		SkipDelete:       v.GetBool(KeySkipDelete),
		DownloadPath:     v.GetString(KeyDownload),
		OutputPath:       v.GetString(KeyOutput),
		Chunked:          v.GetBool(KeyChunked),
		ChunkSize:        chunkSize,
		ChunkRetries:     v.GetInt(KeyChunkRetries),
		RetryBackoff:     v.GetDuration(KeyRetryBackoff),
		Iterations:       v.GetInt(KeyIterations),
		ExpectDigest:     v.GetString(KeyExpect),
		ReportPath:       v.GetString(KeyReport),
		HTTPClientConfig: httpCfg,
		S3: utils.S3Config{
			Profile:   v.GetString(KeyS3Profile),
			Region:    v.GetString(KeyS3Region),
			Endpoint:  v.GetString(KeyS3Endpoint),
			PathStyle: v.GetBool(KeyS3PathStyle),
		},
	}
	return cfg, nil
}

func httpClientConfig(v *viper.Viper) (utils.HTTPClientConfig, error) {
	proxyURL := v.GetString(KeyProxy)
	proxyUsername := v.GetString(KeyProxyUsername)
	proxyPassword := v.GetString(KeyProxyPassword)
	// Credentials embedded in the proxy URL move to the dedicated fields
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return utils.HTTPClientConfig{}, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if parsed.User != nil && proxyUsername == "" {
			proxyUsername = parsed.User.Username()
			if password, set := parsed.User.Password(); set {
				proxyPassword = password
			}
			parsed.User = nil
			proxyURL = parsed.String()
		}
	}
	return utils.HTTPClientConfig{
		Timeout:       v.GetDuration(KeyTimeout),
		KATimeout:     v.GetDuration(KeyKATimeout),
		ProxyURL:      proxyURL,
		ProxyUsername: proxyUsername,
		ProxyPassword: proxyPassword,
		UserAgent:     stringOr(v.GetString(KeyUserAgent), utils.ToolUserAgent),
		Headers:       utils.ParseHeaderArgs(v.GetStringSlice(KeyHeader)),
		Insecure:      v.GetBool(KeyInsecure),
	}, nil
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
