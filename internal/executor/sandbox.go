package executor

import (
	"fmt"

	"codepad/internal/job"
)

// Policy names the process-level sandbox wrapper. The wrapper binary and
// its profile are external collaborators; this package consumes them by
// path and fixed argv shape only.
type Policy struct {
	Binary  string
	Profile string
}

// Enabled reports whether commands are wrapped. An empty binary runs the
// command bare, which is only acceptable in development and tests.
func (p Policy) Enabled() bool {
	return p.Binary != ""
}

// Wrap prefixes argv with the sandbox invocation: no network and a
// private filesystem view come from the profile; resource ceilings ride
// as rlimit flags. The CPU-time limit equals the wall timeout.
func (p Policy) Wrap(argv []string, lang job.Language, opts Options) []string {
	if !p.Enabled() {
		return argv
	}

	timeoutSec := int(opts.Timeout.Seconds())
	if timeoutSec < 1 {
		timeoutSec = 1
	}

	wrapped := []string{
		p.Binary,
		"--quiet",
		fmt.Sprintf("--profile=%s", p.Profile),
		fmt.Sprintf("--rlimit-cpu=%d", timeoutSec),
		fmt.Sprintf("--rlimit-fsize=%d", opts.MaxFileSizeMB*1024*1024),
		"--rlimit-nofile=64",
		fmt.Sprintf("--timeout=00:00:%02d", timeoutSec),
	}

	// V8 reserves far more address space than it commits; an
	// address-space rlimit kills node at startup, so the heap cap in
	// nodeCommand stands in for it.
	if lang != job.LangJavaScript {
		wrapped = append(wrapped, fmt.Sprintf("--rlimit-as=%d", opts.MaxMemoryMB*1024*1024))
	}

	return append(wrapped, argv...)
}
