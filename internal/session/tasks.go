package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/socket"
	"github.com/rjpio/multivox/pkg/audio"
	"github.com/rjpio/multivox/pkg/provider/live"
)

// userReader pumps client frames onto the bus. It is the only goroutine that
// reads from the socket. A second initialize frame is a protocol violation.
type userReader struct {
	baseTask

	sock   *socket.Socket
	bus    *chat.Bus
	logger *slog.Logger

	initialized bool
}

func newUserReader(sock *socket.Socket, bus *chat.Bus, logger *slog.Logger) *userReader {
	return &userReader{sock: sock, bus: bus, logger: logger}
}

func (t *userReader) Name() string { return "user_reader" }

func (t *userReader) Start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return t.read(ctx) })
}

// HandleMessage implements chat.Subscriber. The reader only produces.
func (t *userReader) HandleMessage(context.Context, *chat.Message) error { return nil }

func (t *userReader) read(ctx context.Context) error {
	for t.running() {
		msg, err := t.sock.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, socket.ErrProtocol):
				return fmt.Errorf("%w: %v", errProtocol, err)
			case errors.Is(err, socket.ErrDisconnected):
				return errClientGone
			default:
				return fmt.Errorf("session: read client: %w", err)
			}
		}
		if msg.Kind == chat.KindInitialize {
			if t.initialized {
				return fmt.Errorf("%w: duplicate initialize", errProtocol)
			}
			t.initialized = true
		}
		if err := t.bus.Publish(msg); err != nil {
			return errStopped
		}
	}
	return errStopped
}

// userWriter forwards bus traffic back to the client. The client already has
// its own outbound messages, so user-role frames and the initialize frame are
// skipped. Write failures are logged; the reader notices the dead socket and
// drives teardown.
type userWriter struct {
	baseTask

	sock   *socket.Socket
	logger *slog.Logger
}

func newUserWriter(sock *socket.Socket, logger *slog.Logger) *userWriter {
	return &userWriter{sock: sock, logger: logger}
}

func (t *userWriter) Name() string { return "user_writer" }

func (t *userWriter) Start(context.Context, *errgroup.Group) {}

func (t *userWriter) HandleMessage(ctx context.Context, msg *chat.Message) error {
	if !t.running() {
		return nil
	}
	if msg.Role == chat.RoleUser || msg.Kind == chat.KindInitialize {
		return nil
	}
	if err := t.sock.Send(ctx, msg); err != nil {
		t.logger.Warn("session: client write failed", "err", err, "kind", msg.Kind)
	}
	return nil
}

// upstreamReader republishes the live model's output stream as assistant
// messages. The event channel closing ends the session: cleanly when the
// model hung up, fatally when the transport failed.
type upstreamReader struct {
	baseTask

	upstream live.SessionHandle
	bus      *chat.Bus
	logger   *slog.Logger
}

func newUpstreamReader(upstream live.SessionHandle, bus *chat.Bus, logger *slog.Logger) *upstreamReader {
	return &upstreamReader{upstream: upstream, bus: bus, logger: logger}
}

func (t *upstreamReader) Name() string { return "upstream_reader" }

func (t *upstreamReader) Start(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error { return t.read(ctx) })
}

// HandleMessage implements chat.Subscriber. The reader only produces.
func (t *upstreamReader) HandleMessage(context.Context, *chat.Message) error { return nil }

func (t *upstreamReader) read(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return errStopped
		case ev, ok := <-t.upstream.Events():
			if !ok {
				if err := t.upstream.Err(); err != nil {
					return fmt.Errorf("session: upstream: %w", err)
				}
				return errUpstreamClosed
			}
			var msg *chat.Message
			switch {
			case len(ev.Audio) > 0:
				msg = chat.NewAudioMessage(chat.RoleAssistant, ev.Audio,
					audio.PCMMime(audio.ServerSampleRate), ev.TurnComplete)
			case ev.Text != "" || ev.TurnComplete:
				msg = chat.NewTextMessage(chat.RoleAssistant, ev.Text, ev.TurnComplete)
			default:
				continue
			}
			if err := t.bus.Publish(msg); err != nil {
				return errStopped
			}
		}
	}
}

// upstreamWriter forwards the learner's input to the live model. Only
// user-role conversation frames go upstream; derived kinds never do. Text is
// always delivered as an end-of-turn input because the live API responds per
// text submission.
type upstreamWriter struct {
	baseTask

	upstream live.SessionHandle
	logger   *slog.Logger
}

func newUpstreamWriter(upstream live.SessionHandle, logger *slog.Logger) *upstreamWriter {
	return &upstreamWriter{upstream: upstream, logger: logger}
}

func (t *upstreamWriter) Name() string { return "upstream_writer" }

func (t *upstreamWriter) Start(context.Context, *errgroup.Group) {}

func (t *upstreamWriter) HandleMessage(_ context.Context, msg *chat.Message) error {
	if !t.running() {
		return nil
	}
	if msg.Role != chat.RoleUser || msg.Kind.IsDerived() {
		return nil
	}

	var err error
	switch msg.Kind {
	case chat.KindInitialize:
		err = t.upstream.SendText(msg.Text, true)
	case chat.KindText:
		text := msg.Text
		if text == "" {
			text = " "
		}
		err = t.upstream.SendText(text, true)
	case chat.KindAudio:
		mime := msg.MimeType
		if mime == "" {
			mime = audio.PCMMime(audio.ClientSampleRate)
		}
		err = t.upstream.SendAudio(msg.Audio, mime)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: upstream send: %w", err)
	}
	return nil
}
