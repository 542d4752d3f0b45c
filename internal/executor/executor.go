// Package executor owns sandboxed child processes. An executor writes
// the source into a private temporary directory, optionally compiles it,
// and supervises the run through a pseudoterminal: raw terminal bytes go
// out through a callback, input bytes come in through a queue.
package executor

import (
	"context"
	"time"

	"codepad/internal/config"
	"codepad/internal/job"
)

// Request carries one execution. OnOutput is invoked synchronously per
// byte chunk as it arrives from the PTY master; Input is read without
// blocking and forwarded to the PTY verbatim.
type Request struct {
	JobID    string
	Code     string
	Filename string
	OnOutput func([]byte)
	Input    *InputQueue
}

// Executor runs one language. Implementations release their temporary
// directory and descriptors on every exit path.
type Executor interface {
	Language() job.Language
	Execute(ctx context.Context, req Request) (job.Result, error)
}

// Options bundles the execution policy shared by all executors.
type Options struct {
	Timeout        time.Duration
	CompileTimeout time.Duration
	ChunkBytes     int
	PollInterval   time.Duration
	MaxMemoryMB    int64
	MaxFileSizeMB  int64
	Sandbox        Policy
}

// OptionsFromConfig maps the startup configuration onto executor policy.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:        cfg.Execution.Timeout,
		CompileTimeout: cfg.Execution.CompilationTimeout,
		ChunkBytes:     cfg.Execution.PTYChunkBytes,
		PollInterval:   cfg.Execution.PTYPollInterval,
		MaxMemoryMB:    cfg.Execution.MaxMemoryMB,
		MaxFileSizeMB:  cfg.Execution.MaxFileSizeMB,
		Sandbox: Policy{
			Binary:  cfg.Sandbox.Binary,
			Profile: cfg.Sandbox.Profile,
		},
	}
}

// Registry maps languages to their executors.
type Registry struct {
	executors map[job.Language]Executor
}

// Runner is the lookup seam the orchestrator depends on.
type Runner interface {
	Get(lang job.Language) (Executor, error)
}

// NewRegistry builds executors for the closed language set.
func NewRegistry(opts Options) *Registry {
	r := &Registry{executors: make(map[job.Language]Executor)}
	r.Register(newInterpreted(job.LangPython, opts, pythonCommand))
	r.Register(newInterpreted(job.LangJavaScript, opts, nodeCommand))
	r.Register(newCompiled(job.LangC, opts, "gcc", []string{"-std=c11", "-lm"}))
	r.Register(newCompiled(job.LangCPP, opts, "g++", []string{"-std=c++17"}))
	r.Register(newCompiled(job.LangRust, opts, "rustc", nil))
	return r
}

func (r *Registry) Register(e Executor) {
	r.executors[e.Language()] = e
}

func (r *Registry) Get(lang job.Language) (Executor, error) {
	e, ok := r.executors[lang]
	if !ok {
		return nil, ErrUnsupportedLang
	}
	return e, nil
}
