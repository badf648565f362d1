package scheduler

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/xferbench/internal/harness"
	"github.com/tanq16/xferbench/internal/transfer"
	"github.com/tanq16/xferbench/internal/utils"
	"gopkg.in/yaml.v3"
)

// Outcome is the result of one job. Err is set when the run could not
// produce a report (bad config, unreachable backend, generation failure).
type Outcome struct {
	Config utils.RunConfig
	Report *harness.IterationReport
	Err    error
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Report != nil && o.Report.OK()
}

// Callback fires before and after each job; report and err are nil on the
// "before" call.
type Callback func(index int, cfg utils.RunConfig, report *harness.IterationReport, err error)

type Scheduler struct {
	observer harness.Observer
	before   Callback
	after    Callback
}

type Option func(*Scheduler)

func WithObserver(o harness.Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

func WithBefore(cb Callback) Option {
	return func(s *Scheduler) { s.before = cb }
}

func WithAfter(cb Callback) Option {
	return func(s *Scheduler) { s.after = cb }
}

// LoadPlan reads a YAML plan and resolves every entry on top of base.
func LoadPlan(path string, base utils.RunConfig) ([]utils.RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &utils.IOError{Op: "read", Path: path, Err: err}
	}
	var plan utils.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("error parsing plan %s: %w", path, err)
	}
	if len(plan.Runs) == 0 {
		return nil, fmt.Errorf("plan %s has no runs", path)
	}
	jobs := make([]utils.RunConfig, 0, len(plan.Runs))
	for i, entry := range plan.Runs {
		cfg, err := ApplyEntry(base, entry)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		if cfg.Name == "" {
			cfg.Name = fmt.Sprintf("run-%d", i+1)
		}
		jobs = append(jobs, cfg)
	}
	return jobs, nil
}

// ApplyEntry overrides base with every field the entry sets.
func ApplyEntry(base utils.RunConfig, e utils.PlanEntry) (utils.RunConfig, error) {
	cfg := base
	cfg.Name = e.Name
	// Headers are shared with base, copy before anything can mutate them
	if base.HTTPClientConfig.Headers != nil {
		cfg.HTTPClientConfig.Headers = make(map[string]string, len(base.HTTPClientConfig.Headers))
		for k, v := range base.HTTPClientConfig.Headers {
			cfg.HTTPClientConfig.Headers[k] = v
		}
	}
	setString(&cfg.Server, e.Server)
	setString(&cfg.GeneratePath, e.Generate)
	setString(&cfg.UploadPath, e.Upload)
	setString(&cfg.UploadMode, e.UploadMode)
	setString(&cfg.DownloadPath, e.Download)
	setString(&cfg.OutputPath, e.Output)
	setString(&cfg.ExpectDigest, e.Expect)
	setString(&cfg.ReportPath, e.Report)
	if e.Seed != nil {
		cfg.Seed = *e.Seed
	}
	if e.SkipDelete != nil {
		cfg.SkipDelete = *e.SkipDelete
	}
	if e.Chunked != nil {
		cfg.Chunked = *e.Chunked
	}
	if e.ChunkRetries != nil {
		cfg.ChunkRetries = *e.ChunkRetries
	}
	if e.Iterations != nil {
		cfg.Iterations = *e.Iterations
	}
	if e.Size != nil {
		size, err := utils.ParseSize(*e.Size)
		if err != nil {
			return cfg, fmt.Errorf("invalid size: %w", err)
		}
		cfg.GenerateSize = size
	}
	if e.ChunkSize != nil {
		size, err := utils.ParseSize(*e.ChunkSize)
		if err != nil {
			return cfg, fmt.Errorf("invalid chunk size: %w", err)
		}
		cfg.ChunkSize = size
	}
	// An entry that names its own download does not inherit the base output path
	if e.Download != nil && e.Output == nil {
		cfg.OutputPath = ""
	}
	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes jobs one after another. A failing job never stops the ones
// after it; only context cancellation does.
func (s *Scheduler) Run(ctx context.Context, jobs []utils.RunConfig) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for i, cfg := range jobs {
		if err := ctx.Err(); err != nil {
			log.Debug().Str("op", "scheduler/run").Msgf("stopping before job %d: %v", i+1, err)
			break
		}
		if s.before != nil {
			s.before(i, cfg, nil, nil)
		}
		report, err := s.runJob(ctx, cfg)
		if err != nil {
			log.Error().Str("op", "scheduler/run").Str("job", cfg.Name).Err(err).Msg("job failed")
		}
		outcomes = append(outcomes, Outcome{Config: cfg, Report: report, Err: err})
		if s.after != nil {
			s.after(i, cfg, report, err)
		}
	}
	return outcomes
}

func (s *Scheduler) runJob(ctx context.Context, cfg utils.RunConfig) (*harness.IterationReport, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var backend transfer.Backend
	if cfg.UploadPath != "" || cfg.DownloadPath != "" {
		b, err := transfer.NewBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	var opts []harness.Option
	if s.observer != nil {
		opts = append(opts, harness.WithObserver(s.observer))
	}
	h, err := harness.New(cfg, backend, opts...)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx)
}
