package executor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"codepad/internal/job"
)

// compiled runs languages with a build step ahead of the PTY run. The
// build is a plain blocking invocation with its own timeout and its own
// output capture; only the produced binary goes under the PTY.
type compiled struct {
	lang     job.Language
	opts     Options
	compiler string
	flags    []string
}

func newCompiled(lang job.Language, opts Options, compiler string, flags []string) *compiled {
	return &compiled{lang: lang, opts: opts, compiler: compiler, flags: flags}
}

func (e *compiled) Language() job.Language { return e.lang }

func (e *compiled) Execute(ctx context.Context, req Request) (job.Result, error) {
	dir, srcPath, err := writeSource(req)
	if err != nil {
		return job.Result{}, err
	}
	defer removeWorkdir(dir, req.JobID)

	binPath := filepath.Join(dir, "program")

	buildLog, buildErr := e.compile(ctx, srcPath, binPath, dir)
	if buildErr != nil {
		var exitErr *exec.ExitError
		if errors.Is(buildErr, context.DeadlineExceeded) {
			return job.Result{
				Success:       false,
				ExitCode:      -1,
				ExecutionTime: e.opts.CompileTimeout.Seconds(),
				Stderr:        fmt.Sprintf("compilation timed out after %s", e.opts.CompileTimeout),
			}, nil
		}
		if errors.As(buildErr, &exitErr) {
			return job.Result{
				Success:  false,
				ExitCode: -1,
				Stderr:   sanitizeBuildLog(buildLog, dir, req.Filename),
			}, nil
		}
		return job.Result{}, &ExecutionError{JobID: req.JobID, Op: "compile", Err: buildErr}
	}

	argv := e.opts.Sandbox.Wrap([]string{binPath}, e.lang, e.opts)

	out, err := runPTY(ctx, argv, dir, ptyConfig{
		chunk:    e.opts.ChunkBytes,
		poll:     e.opts.PollInterval,
		timeout:  e.opts.Timeout,
		onOutput: req.OnOutput,
		input:    req.Input,
	})
	if err != nil {
		return job.Result{}, &ExecutionError{JobID: req.JobID, Op: "run", Err: err}
	}

	return job.Result{
		Success:       out.ExitCode == 0,
		ExitCode:      out.ExitCode,
		ExecutionTime: out.Elapsed.Seconds(),
		Stdout:        out.Stdout,
		Stderr:        "",
	}, nil
}

func (e *compiled) compile(ctx context.Context, srcPath, binPath, dir string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.opts.CompileTimeout)
	defer cancel()

	argv := append([]string{srcPath, "-o", binPath}, e.flags...)
	cmd := exec.CommandContext(cctx, e.compiler, argv...) // #nosec G204 -- compiler and flags are fixed per language
	cmd.Dir = dir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", context.DeadlineExceeded
		}
		log.Debug().
			Str("compiler", e.compiler).
			Dur("duration", time.Since(start)).
			Msg("compilation failed")
		return string(output), err
	}
	return "", nil
}

// sanitizeBuildLog replaces the private temporary path with the logical
// filename so the work directory never leaks to the client.
func sanitizeBuildLog(buildLog, dir, filename string) string {
	cleaned := strings.ReplaceAll(buildLog, filepath.Join(dir, filename), filename)
	cleaned = strings.ReplaceAll(cleaned, dir+string(filepath.Separator), "")
	cleaned = strings.ReplaceAll(cleaned, dir, "")
	return cleaned
}
