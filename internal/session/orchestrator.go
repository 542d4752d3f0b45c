// Package session drives one WebSocket connection through the execute
// protocol: authenticate the first frame, validate the code, launch the
// executor on a worker, and relay bus traffic until the terminal event.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codepad/internal/bus"
	"codepad/internal/config"
	"codepad/internal/executor"
	"codepad/internal/job"
	"codepad/internal/monitor"
	"codepad/internal/store"
	"codepad/internal/validator"
)

// Orchestrator owns the per-connection state machine for /ws/execute.
type Orchestrator struct {
	store   store.Store
	bus     bus.Bus
	runner  executor.Runner
	cfg     *config.Config
	metrics *monitor.Metrics
	tracer  *monitor.Tracer

	// validate is a seam for protocol tests; production uses
	// validator.Check.
	validate func(lang job.Language, source []byte) validator.Verdict
}

func NewOrchestrator(st store.Store, b bus.Bus, runner executor.Runner, cfg *config.Config, metrics *monitor.Metrics) *Orchestrator {
	return &Orchestrator{
		store:    st,
		bus:      b,
		runner:   runner,
		cfg:      cfg,
		metrics:  metrics,
		tracer:   monitor.NewTracer(),
		validate: validator.Check,
	}
}

// Handle runs the connection to completion. The caller has already
// upgraded; Handle closes the connection on every path.
func (o *Orchestrator) Handle(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	o.metrics.ActiveSessions.Inc()
	defer o.metrics.ActiveSessions.Dec()

	ctx := context.Background()

	// AWAIT_FIRST: exactly one execute frame, within the deadline.
	_ = conn.SetReadDeadline(time.Now().Add(o.cfg.Server.FirstMessageTimeout))
	var first ClientFrame
	if err := conn.ReadJSON(&first); err != nil {
		o.closeWith(conn, ClosePolicy, "timed out waiting for execute message")
		return
	}
	if first.Type != frameExecute {
		o.closeWith(conn, ClosePolicy, "first message must be of type 'execute'")
		return
	}

	jobID, err := o.store.ConsumeToken(ctx, first.JobToken)
	if err != nil || jobID != first.JobID {
		log.Warn().Str("job_id", first.JobID).Msg("token rejected")
		o.closeWith(conn, ClosePolicy, "invalid token")
		return
	}

	j, err := o.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.closeWith(conn, ClosePolicy, "unknown job")
		} else {
			o.closeWith(conn, CloseInternalError, "store unavailable")
		}
		return
	}

	logger := log.With().Str("job_id", j.ID).Str("language", string(j.Language)).Logger()

	// VALIDATING.
	if _, err := job.ParseLanguage(first.Language); err != nil {
		o.rejectAndClose(ctx, conn, j, "unsupported language")
		return
	}
	if len(j.Code) > o.cfg.Execution.MaxCodeBytes {
		o.rejectAndClose(ctx, conn, j, "code exceeds maximum size")
		return
	}
	o.metrics.CodeSizeBytes.Observe(float64(len(j.Code)))

	_, span := o.tracer.StartSpan(ctx, "validate", monitor.AttrJobID.String(j.ID), monitor.AttrLanguage.String(string(j.Language)))
	verdict := o.validate(j.Language, []byte(j.Code))
	span.End()

	if !verdict.OK {
		o.metrics.ValidationRejections.WithLabelValues(string(j.Language)).Inc()
		logger.Info().Str("reason", verdict.Reason).Msg("validation rejected")
		o.rejectAndClose(ctx, conn, j, "code validation failed: "+verdict.Reason)
		return
	}

	// Subscribe before the executor starts so no message is missed.
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	sub, err := o.bus.Subscribe(subCtx, j.ID)
	if err != nil {
		logger.Error().Err(err).Msg("bus subscribe failed")
		o.closeWith(conn, CloseInternalError, "subscription failed")
		return
	}
	defer sub.Close()

	if err := withRetry(func() error { return o.store.MarkProcessing(ctx, j.ID) }); err != nil {
		logger.Error().Err(err).Msg("processing transition failed")
		o.closeWith(conn, CloseInternalError, "job state error")
		return
	}

	// RUNNING: executor on its own goroutine, reader feeding the input
	// queue, this goroutine relaying bus messages to the socket.
	input := executor.NewInputQueue(o.cfg.Execution.InputQueueDepth)
	execCtx, execCancel := context.WithCancel(context.Background())
	defer execCancel()

	worker := NewWorker(o.store, o.bus, o.runner, o.metrics)
	go worker.Run(execCtx, j, input)

	readerDone := make(chan struct{})
	go o.readInput(conn, input, readerDone, logger)

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				// Subscription dropped without a terminal event.
				o.closeWith(conn, CloseInternalError, "stream interrupted")
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("client write failed, cancelling")
				o.cancelAndDrain(execCancel, sub)
				return
			}
			if msg.Terminal() {
				o.closeWith(conn, CloseNormal, "")
				return
			}

		case <-readerDone:
			// CANCELLING: client went away first.
			logger.Info().Msg("client disconnected, cancelling job")
			o.cancelAndDrain(execCancel, sub)
			return
		}
	}
}

// readInput consumes frames after the execute message. Only input frames
// are accepted; anything else is logged and dropped.
func (o *Orchestrator) readInput(conn *websocket.Conn, input *executor.InputQueue, done chan<- struct{}, logger zerolog.Logger) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Time{})

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != frameInput {
			logger.Warn().Str("type", frame.Type).Msg("unexpected frame type")
			continue
		}
		if err := input.Put([]byte(frame.Data)); err != nil {
			logger.Warn().Msg("input queue full, dropping entry")
		}
	}
}

// cancelAndDrain signals the executor and waits for its terminal event
// with a bounded deadline, then returns regardless; teardown past the
// deadline is the executor's own responsibility.
func (o *Orchestrator) cancelAndDrain(execCancel context.CancelFunc, sub *bus.Subscription) {
	execCancel()
	deadline := time.NewTimer(o.cfg.Server.CancelDeadline)
	defer deadline.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok || msg.Terminal() {
				return
			}
		case <-deadline.C:
			return
		}
	}
}

// rejectAndClose reports a validation failure: error frame, failed job,
// close 1003. No process is spawned on this path.
func (o *Orchestrator) rejectAndClose(ctx context.Context, conn *websocket.Conn, j *job.Job, reason string) {
	_ = conn.WriteJSON(bus.Message{Type: "error", Message: reason})
	if err := o.store.MarkFailed(ctx, j.ID, reason, nil); err != nil && !errors.Is(err, store.ErrIllegalTransition) {
		log.Error().Err(err).Str("job_id", j.ID).Msg("failure write failed")
	}
	o.closeWith(conn, CloseValidation, reason)
}

func (o *Orchestrator) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
