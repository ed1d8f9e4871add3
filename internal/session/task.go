package session

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rjpio/multivox/internal/chat"
)

// Exit causes for long-running task loops. The orchestrator maps these to
// WebSocket close codes; anything else counts as an internal error (1011).
var (
	errClientGone     = errors.New("session: client disconnected")
	errUpstreamClosed = errors.New("session: upstream closed")
	errStopped        = errors.New("session: stopped")
	errProtocol       = errors.New("session: protocol violation")
)

// Task is a bus subscriber whose lifecycle the orchestrator owns. Start
// launches any long-running producer loops on the group; tasks without
// producers return immediately. Producer loops always exit with a non-nil
// cause so the group context wakes the orchestrator on first completion.
type Task interface {
	chat.Subscriber

	Name() string
	Start(ctx context.Context, g *errgroup.Group)
	Stop()
}

// baseTask carries the cooperative stop flag shared by all tasks.
type baseTask struct {
	stopped atomic.Bool
}

func (t *baseTask) Stop() {
	t.stopped.Store(true)
}

func (t *baseTask) running() bool {
	return !t.stopped.Load()
}
