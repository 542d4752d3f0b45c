package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/creack/pty"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	// maxInputDrainPerTick bounds how many queue entries one loop tick
	// forwards, so a flood of input cannot starve output reads.
	maxInputDrainPerTick = 16

	// captureLimit caps the stdout buffer kept for the job record. The
	// streaming callback is not capped.
	captureLimit = 1 << 20

	termGrace    = 500 * time.Millisecond
	drainWindow  = 200 * time.Millisecond
	timeoutExit  = -9
	spawnEnvPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
)

type ptyConfig struct {
	chunk    int
	poll     time.Duration
	timeout  time.Duration
	onOutput func([]byte)
	input    *InputQueue
}

// runPTY spawns argv on a fresh pseudoterminal and supervises it until
// exit, timeout, or cancellation. The child runs in its own session (and
// therefore its own process group), so teardown can signal the whole
// group.
func runPTY(ctx context.Context, argv []string, dir string, cfg ptyConfig) (ptyOutcome, error) {
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 -- argv is built from fixed templates
	cmd.Dir = dir
	cmd.Env = []string{
		spawnEnvPath,
		"HOME=/tmp",
		"LANG=C.UTF-8",
		"TERM=xterm-256color",
	}

	start := time.Now()

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		return ptyOutcome{}, &ExecutionError{Op: "spawn", Err: fmt.Errorf("%w: %v", ErrSpawn, err)}
	}
	defer func() { _ = master.Close() }()

	if err := unix.SetNonblock(int(master.Fd()), true); err != nil {
		killGroup(cmd.Process.Pid, unix.SIGKILL)
		_ = cmd.Wait()
		return ptyOutcome{}, &ExecutionError{Op: "set_nonblock", Err: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var captured bytes.Buffer
	chunk := make([]byte, cfg.chunk)
	pollMs := int(cfg.poll.Milliseconds())
	if pollMs < 1 {
		pollMs = 10
	}

	var (
		exited   bool
		timedOut bool
		eof      bool
	)

	for {
		if !eof {
			eof = readTick(master, chunk, pollMs, &captured, cfg.onOutput)
		} else {
			time.Sleep(cfg.poll)
		}

		for i := 0; i < maxInputDrainPerTick; i++ {
			data, ok := cfg.input.TryGet()
			if !ok {
				break
			}
			if _, werr := master.Write(data); werr != nil {
				break
			}
		}

		if ctx.Err() != nil || time.Since(start) > cfg.timeout {
			timedOut = true
			terminateGroup(cmd.Process.Pid, waitCh)
			break
		}

		select {
		case <-waitCh:
			exited = true
		default:
		}
		if exited || eof {
			break
		}
	}

	if !timedOut {
		// The slave side may still hold buffered bytes; drain them with
		// a short deadline before closing the master.
		drainMaster(master, chunk, &captured, cfg.onOutput)
	}

	if !exited && !timedOut {
		select {
		case <-waitCh:
		case <-time.After(termGrace):
			killGroup(cmd.Process.Pid, unix.SIGKILL)
			<-waitCh
		}
	}

	exitCode := timeoutExit
	if !timedOut {
		exitCode = -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
	}

	return ptyOutcome{
		ExitCode: exitCode,
		Elapsed:  time.Since(start),
		Stdout:   captured.String(),
		TimedOut: timedOut,
	}, nil
}

type ptyOutcome struct {
	ExitCode int
	Elapsed  time.Duration
	Stdout   string
	TimedOut bool
}

// readTick polls the master for up to pollMs and reads one chunk if
// ready. Returns true on EOF (zero read or closed-pty error).
func readTick(master *os.File, chunk []byte, pollMs int, captured *bytes.Buffer, onOutput func([]byte)) bool {
	fds := []unix.PollFd{{Fd: int32(master.Fd()), Events: unix.POLLIN}}
	n, perr := unix.Poll(fds, pollMs)
	if perr != nil {
		if perr == unix.EINTR {
			return false
		}
		return true
	}
	if n == 0 || fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return false
	}

	rn, rerr := master.Read(chunk)
	if rn > 0 {
		appendCapped(captured, chunk[:rn])
		if onOutput != nil {
			out := make([]byte, rn)
			copy(out, chunk[:rn])
			onOutput(out)
		}
	}
	if rerr != nil {
		// EIO is the normal close signal from a Linux pty master once
		// the slave side is gone.
		return true
	}
	return rn == 0 && fds[0].Revents&unix.POLLHUP != 0
}

// drainMaster pulls any remaining buffered bytes with a short deadline.
func drainMaster(master *os.File, chunk []byte, captured *bytes.Buffer, onOutput func([]byte)) {
	deadline := time.Now().Add(drainWindow)
	for time.Now().Before(deadline) {
		if eof := readTick(master, chunk, 10, captured, onOutput); eof {
			return
		}
	}
}

func appendCapped(buf *bytes.Buffer, data []byte) {
	if buf.Len() >= captureLimit {
		return
	}
	if room := captureLimit - buf.Len(); len(data) > room {
		data = data[:room]
	}
	buf.Write(data)
}

// terminateGroup asks the child's process group to stop, escalating to
// SIGKILL after a grace interval.
func terminateGroup(pid int, waitCh <-chan error) {
	killGroup(pid, unix.SIGTERM)
	select {
	case <-waitCh:
	case <-time.After(termGrace):
		killGroup(pid, unix.SIGKILL)
		select {
		case <-waitCh:
		case <-time.After(time.Second):
			log.Warn().Int("pid", pid).Msg("child did not reap after SIGKILL")
		}
	}
}

func killGroup(pid int, sig unix.Signal) {
	if pid <= 0 {
		return
	}
	if err := unix.Kill(-pid, sig); err != nil {
		// Group may already be gone; fall back to the lone pid.
		_ = unix.Kill(pid, sig)
	}
}
