// Package bus is the publish/subscribe fabric that decouples the PTY
// worker from the socket-facing orchestrator. Each job owns two topics,
// job:{id}:output and job:{id}:complete; after a terminal message no
// further messages appear on either.
package bus

import "context"

// Message is one envelope on a job's topics. It marshals to exactly the
// frame shape the client receives, so the orchestrator can forward it
// verbatim.
type Message struct {
	Type          string   `json:"type"` // output | complete | error
	Stream        string   `json:"stream,omitempty"`
	Data          string   `json:"data,omitempty"`
	ExitCode      *int     `json:"exit_code,omitempty"`
	ExecutionTime *float64 `json:"execution_time,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Terminal reports whether the message ends the job's stream.
func (m Message) Terminal() bool {
	return m.Type == "complete" || m.Type == "error"
}

// Subscription delivers a job's messages in publish order. The channel
// closes after a terminal message, on Close, or when the subscribe
// context ends.
type Subscription struct {
	C     <-chan Message
	close func()
}

func NewSubscription(ch <-chan Message, closeFn func()) *Subscription {
	return &Subscription{C: ch, close: closeFn}
}

func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}

// Bus is the topic adapter. A single publisher per job is the common
// case; implementations must not reorder messages from one publisher.
type Bus interface {
	PublishOutput(ctx context.Context, jobID, stream, data string) error
	PublishComplete(ctx context.Context, jobID string, exitCode int, executionTime float64) error
	PublishError(ctx context.Context, jobID, message string) error

	// Subscribe joins both of the job's topics. It returns only after the
	// subscription is established, so messages published afterwards are
	// never missed.
	Subscribe(ctx context.Context, jobID string) (*Subscription, error)
}
