package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/server"
)

func wsURL(f *fixture, query string) string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/api/practice?" + query
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *chat.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	msg, err := chat.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	return msg
}

func TestPracticeRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	conn := dial(t, wsURL(f, "practice_language=xx&native_language=en&mode=step_by_step&modality=text"))
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected close, got a frame")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Errorf("close status: got %d, want %d", status, websocket.StatusPolicyViolation)
	}
}

func TestPracticeStepByStepSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enricher.TranscribeAndHintFunc = func(_ context.Context, req enrich.TranscribeAndHintRequest) (*enrich.TranscribeAndHintResponse, error) {
		return &enrich.TranscribeAndHintResponse{
			ResponseText:   "いらっしゃいませ。",
			TranslatedText: "Welcome.",
			Hints:          []chat.HintOption{{SourceText: "チェックインをお願いします", TranslatedText: "I'd like to check in"}},
		}, nil
	}

	conn := dial(t, wsURL(f, "practice_language=ja&native_language=en&mode=step_by_step&modality=text"))
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	init := &chat.Message{Kind: chat.KindInitialize, Role: chat.RoleUser, Text: "You are a hotel receptionist."}
	data, err := init.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("client write: %v", err)
	}

	first := readMessage(t, conn)
	if first.Kind != chat.KindTranscription {
		t.Fatalf("first frame kind: got %q, want %q", first.Kind, chat.KindTranscription)
	}
	if first.SourceText != "いらっしゃいませ。" {
		t.Errorf("transcription source_text: got %q", first.SourceText)
	}

	second := readMessage(t, conn)
	if second.Kind != chat.KindHint {
		t.Fatalf("second frame kind: got %q, want %q", second.Kind, chat.KindHint)
	}
	if len(second.Hints) != 1 {
		t.Errorf("hints: got %+v", second.Hints)
	}
}

func TestPracticeAppliesDefaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *server.Config) {
		c.DefaultMode = "step_by_step"
		c.DefaultModality = "text"
	})
	f.enricher.TranscribeAndHintFunc = func(_ context.Context, req enrich.TranscribeAndHintRequest) (*enrich.TranscribeAndHintResponse, error) {
		return &enrich.TranscribeAndHintResponse{ResponseText: "Bonjour."}, nil
	}

	// No mode or modality in the query: defaults kick in and the session runs.
	conn := dial(t, wsURL(f, "practice_language=fr&native_language=en"))
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	init := &chat.Message{Kind: chat.KindInitialize, Role: chat.RoleUser, Text: "You are a barista."}
	data, err := init.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("client write: %v", err)
	}

	msg := readMessage(t, conn)
	if msg.Kind != chat.KindTranscription {
		t.Fatalf("frame kind: got %q, want %q", msg.Kind, chat.KindTranscription)
	}
}

func TestPracticeUnknownModeCloses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	conn := dial(t, wsURL(f, "practice_language=ja&native_language=en&mode=free_talk"))
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected close, got a frame")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusInternalError {
		t.Errorf("close status: got %d, want %d", status, websocket.StatusInternalError)
	}
}
