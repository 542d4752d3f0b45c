package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codepad/internal/bus"
	"codepad/internal/executor"
	"codepad/internal/job"
	"codepad/internal/monitor"
	"codepad/internal/store"
)

// Worker drives one job through its executor on a dedicated goroutine
// and publishes the job's bus traffic. Every run that leaves processing
// publishes exactly one terminal event.
type Worker struct {
	store   store.Store
	bus     bus.Bus
	runner  executor.Runner
	metrics *monitor.Metrics
}

func NewWorker(st store.Store, b bus.Bus, runner executor.Runner, metrics *monitor.Metrics) *Worker {
	return &Worker{store: st, bus: b, runner: runner, metrics: metrics}
}

// Run executes the job and settles its record. ctx cancellation stops
// the executor at its next poll tick; the terminal event is still
// published under a background context so a dead socket cannot suppress
// it.
func (w *Worker) Run(ctx context.Context, j *job.Job, input *executor.InputQueue) {
	logger := log.With().Str("job_id", j.ID).Str("language", string(j.Language)).Logger()

	exec, err := w.runner.Get(j.Language)
	if err != nil {
		w.fail(j, "unsupported language", logger)
		return
	}

	w.metrics.ActiveExecutions.Inc()
	defer w.metrics.ActiveExecutions.Dec()

	start := time.Now()
	res, err := exec.Execute(ctx, executor.Request{
		JobID:    j.ID,
		Code:     j.Code,
		Filename: j.Filename,
		OnOutput: func(data []byte) {
			w.metrics.OutputSizeBytes.Observe(float64(len(data)))
			pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if perr := w.bus.PublishOutput(pubCtx, j.ID, "stdout", string(data)); perr != nil {
				w.metrics.BusPublishFailures.Inc()
				logger.Error().Err(perr).Msg("output publish failed")
			}
		},
		Input: input,
	})

	if err != nil {
		// Spawn, sandbox, and I/O failures are out-of-band: the job
		// fails rather than completes.
		logger.Error().Err(err).Msg("execution failed")
		w.metrics.RecordExecution(string(j.Language), "error", time.Since(start).Seconds())
		w.fail(j, "execution failed", logger)
		return
	}

	status := "success"
	switch {
	case res.ExitCode == -9:
		status = "timeout"
	case res.Stderr != "" && res.ExitCode == -1:
		status = "compile_error"
	case !res.Success:
		status = "nonzero_exit"
	}
	w.metrics.RecordExecution(string(j.Language), status, res.ExecutionTime)

	settleCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := withRetry(func() error { return w.store.MarkCompleted(settleCtx, j.ID, res) }); serr != nil {
		if !errors.Is(serr, store.ErrIllegalTransition) {
			logger.Error().Err(serr).Msg("completion write failed")
		}
	}

	// Out-of-band compile diagnostics surface on the stderr stream
	// before the terminal event.
	if res.Stderr != "" {
		if perr := withRetry(func() error {
			return w.bus.PublishOutput(settleCtx, j.ID, "stderr", res.Stderr)
		}); perr != nil {
			w.metrics.BusPublishFailures.Inc()
			logger.Error().Err(perr).Msg("stderr publish failed")
		}
	}

	if perr := withRetry(func() error {
		return w.bus.PublishComplete(settleCtx, j.ID, res.ExitCode, res.ExecutionTime)
	}); perr != nil {
		w.metrics.BusPublishFailures.Inc()
		logger.Error().Err(perr).Msg("terminal publish failed")
	}

	logger.Info().
		Int("exit_code", res.ExitCode).
		Float64("execution_time", res.ExecutionTime).
		Msg("job completed")
}

func (w *Worker) fail(j *job.Job, message string, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := withRetry(func() error { return w.store.MarkFailed(ctx, j.ID, message, nil) }); serr != nil {
		logger.Error().Err(serr).Msg("failure write failed")
	}
	if perr := withRetry(func() error { return w.bus.PublishError(ctx, j.ID, message) }); perr != nil {
		w.metrics.BusPublishFailures.Inc()
		logger.Error().Err(perr).Msg("error publish failed")
	}
}

// withRetry runs op and retries once after a jittered backoff, the
// policy for transient store/bus failures.
func withRetry(op func() error) error {
	err := op()
	if err == nil || errors.Is(err, store.ErrIllegalTransition) || errors.Is(err, store.ErrNotFound) {
		return err
	}
	time.Sleep(100*time.Millisecond + time.Duration(rand.Intn(100))*time.Millisecond)
	return op()
}
