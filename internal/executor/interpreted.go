package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"codepad/internal/job"
)

// interpreted runs languages with a single-command launch.
type interpreted struct {
	lang    job.Language
	opts    Options
	command func(path string) []string
}

func newInterpreted(lang job.Language, opts Options, command func(path string) []string) *interpreted {
	return &interpreted{lang: lang, opts: opts, command: command}
}

func (e *interpreted) Language() job.Language { return e.lang }

func (e *interpreted) Execute(ctx context.Context, req Request) (job.Result, error) {
	dir, srcPath, err := writeSource(req)
	if err != nil {
		return job.Result{}, err
	}
	defer removeWorkdir(dir, req.JobID)

	argv := e.opts.Sandbox.Wrap(e.command(srcPath), e.lang, e.opts)

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

func pythonCommand(path string) []string {
	return []string{"python3", "-u", "-B", path}
}

func nodeCommand(path string) []string {
	return []string{
		"node",
		"--max-old-space-size=256",
		"--disallow-code-generation-from-strings",
		path,
	}
}

// writeSource creates the private work directory and places the source
// under the validated filename. The filename recorded on the job is the
// one used on disk.
func writeSource(req Request) (dir, srcPath string, err error) {
	if err := job.ValidateFilename(req.Filename); err != nil {
		return "", "", &ExecutionError{JobID: req.JobID, Op: "validate_filename", Err: err}
	}

	dir, err = os.MkdirTemp("", "codepad-*")
	if err != nil {
		return "", "", &ExecutionError{JobID: req.JobID, Op: "create_workdir", Err: err}
	}

	srcPath = filepath.Join(dir, req.Filename)
	if err := os.WriteFile(srcPath, []byte(req.Code), 0600); err != nil {
		removeWorkdir(dir, req.JobID)
		return "", "", &ExecutionError{JobID: req.JobID, Op: "write_source", Err: fmt.Errorf("writing source: %w", err)}
	}
	return dir, srcPath, nil
}

func removeWorkdir(dir, jobID string) {
	if err := os.RemoveAll(dir); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Str("dir", dir).Msg("workdir cleanup failed")
	}
}
