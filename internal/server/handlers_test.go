package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	enrichmock "github.com/rjpio/multivox/internal/enrich/mock"
	"github.com/rjpio/multivox/internal/health"
	"github.com/rjpio/multivox/internal/journal"
	"github.com/rjpio/multivox/internal/scenario"
	"github.com/rjpio/multivox/internal/server"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/provider/llm"
	llmmock "github.com/rjpio/multivox/pkg/provider/llm/mock"
)

// fixture bundles a running test server with its injected fakes.
type fixture struct {
	ts       *httptest.Server
	srv      *server.Server
	enricher *enrichmock.Service
	words    *vocab.Memory
}

func newFixture(t *testing.T, mutate ...func(*server.Config)) *fixture {
	t.Helper()

	f := &fixture{
		enricher: &enrichmock.Service{},
		words:    vocab.NewMemory(),
	}
	cfg := server.Config{
		Catalogue:  scenario.Default(),
		Enricher:   f.enricher,
		Vocabulary: f.words,
		Health:     health.New(),
	}
	for _, m := range mutate {
		m(&cfg)
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	f.srv = srv
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func (f *fixture) post(t *testing.T, path string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("POST %s: decode response: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestLanguages(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Languages []chat.Language `json:"languages"`
	}
	if status := f.get(t, "/api/languages", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Languages) != len(chat.Languages()) {
		t.Fatalf("languages: got %d, want %d", len(got.Languages), len(chat.Languages()))
	}
	if got.Languages[0].Abbreviation != "ar" {
		t.Errorf("first language: got %q, want %q (sorted by code)", got.Languages[0].Abbreviation, "ar")
	}
}

func TestScenarios(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}
	if status := f.get(t, "/api/scenarios", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Scenarios) == 0 {
		t.Fatal("expected built-in scenarios, got none")
	}

	var sc scenario.Scenario
	if status := f.get(t, "/api/scenarios/"+got.Scenarios[0].ID, &sc); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if sc.ID != got.Scenarios[0].ID {
		t.Errorf("scenario id: got %q, want %q", sc.ID, got.Scenarios[0].ID)
	}

	if status := f.get(t, "/api/scenarios/nope", nil); status != http.StatusNotFound {
		t.Errorf("unknown scenario status: got %d, want 404", status)
	}
}

func TestChapters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Chapters []scenario.Chapter `json:"chapters"`
	}
	if status := f.get(t, "/api/chapters", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Chapters) == 0 {
		t.Fatal("expected built-in chapters, got none")
	}

	var ch scenario.Chapter
	if status := f.get(t, "/api/chapters/"+got.Chapters[0].ID, &ch); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(ch.Conversations) == 0 {
		t.Error("chapter has no conversations")
	}

	if status := f.get(t, "/api/chapters/nope", nil); status != http.StatusNotFound {
		t.Errorf("unknown chapter status: got %d, want 404", status)
	}
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enricher.TranslateFunc = func(_ context.Context, req enrich.TranslateRequest) (*enrich.TranslateResponse, error) {
		return &enrich.TranslateResponse{
			SourceText:     req.Text,
			TranslatedText: "Welcome.",
			Chunked:        []string{"いらっしゃいませ"},
			Dictionary: map[string]chat.DictionaryEntry{
				"いらっしゃいませ": {SourceText: "いらっしゃいませ", TranslatedText: "welcome"},
			},
		}, nil
	}

	var got enrich.TranslateResponse
	status := f.post(t, "/api/translate", map[string]string{
		"text":              "いらっしゃいませ",
		"practice_language": "ja",
		"native_language":   "en",
	}, &got)
	if status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if got.TranslatedText != "Welcome." {
		t.Errorf("translated_text: got %q", got.TranslatedText)
	}

	calls := f.enricher.TranslateCalls()
	if len(calls) != 1 {
		t.Fatalf("translate calls: got %d, want 1", len(calls))
	}
	if calls[0].Source.Abbreviation != "ja" || calls[0].Target.Abbreviation != "en" {
		t.Errorf("languages: got %s→%s, want ja→en", calls[0].Source.Abbreviation, calls[0].Target.Abbreviation)
	}

	entries, err := f.words.List(context.Background(), vocab.Filter{Language: "ja"})
	if err != nil {
		t.Fatalf("list vocabulary: %v", err)
	}
	if len(entries) != 1 || entries[0].Term != "いらっしゃいませ" {
		t.Errorf("harvested vocabulary: got %+v", entries)
	}
}

func TestTranslateRejectsBadInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing text", map[string]string{"practice_language": "ja", "native_language": "en"}},
		{"unknown practice language", map[string]string{"text": "hi", "practice_language": "xx", "native_language": "en"}},
		{"unknown native language", map[string]string{"text": "hi", "practice_language": "ja", "native_language": "xx"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status := f.post(t, "/api/translate", tt.body, nil); status != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", status)
			}
		})
	}
	if calls := f.enricher.TranslateCalls(); len(calls) != 0 {
		t.Errorf("enricher called %d times for rejected requests", len(calls))
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enricher.TranscribeFunc = func(_ context.Context, req enrich.TranscribeRequest) (*enrich.TranscribeResponse, error) {
		return &enrich.TranscribeResponse{SourceText: "こんにちは", TranslatedText: "Hello"}, nil
	}

	var got enrich.TranscribeResponse
	status := f.post(t, "/api/transcribe", map[string]any{
		"audio":             []byte{0x01, 0x02, 0x03, 0x04},
		"practice_language": "ja",
		"native_language":   "en",
	}, &got)
	if status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if got.SourceText != "こんにちは" {
		t.Errorf("source_text: got %q", got.SourceText)
	}

	calls := f.enricher.TranscribeCalls()
	if len(calls) != 1 {
		t.Fatalf("transcribe calls: got %d, want 1", len(calls))
	}
	if !bytes.Equal(calls[0].PCM, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("pcm: got %x", calls[0].PCM)
	}
	if calls[0].MimeType != "audio/pcm;rate=16000" {
		t.Errorf("default mime: got %q", calls[0].MimeType)
	}
}

func TestTranscribeRequiresAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	status := f.post(t, "/api/transcribe", map[string]string{
		"practice_language": "ja",
		"native_language":   "en",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", status)
	}
}

func TestHints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enricher.HintsFunc = func(_ context.Context, req enrich.HintRequest) (*enrich.HintResponse, error) {
		return &enrich.HintResponse{Hints: []chat.HintOption{
			{SourceText: "お願いします", TranslatedText: "Please"},
		}}, nil
	}

	var got enrich.HintResponse
	status := f.post(t, "/api/hints", map[string]string{
		"history":           "> assistant: いらっしゃいませ\n",
		"scenario":          "You are a hotel receptionist.",
		"practice_language": "ja",
		"native_language":   "en",
	}, &got)
	if status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Hints) != 1 || got.Hints[0].SourceText != "お願いします" {
		t.Errorf("hints: got %+v", got.Hints)
	}

	calls := f.enricher.HintCalls()
	if len(calls) != 1 {
		t.Fatalf("hint calls: got %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Scenario, "receptionist") {
		t.Errorf("scenario not forwarded: %q", calls[0].Scenario)
	}
}

func TestEnrichmentFailureMapsToBadGateway(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.enricher.TranslateFunc = func(context.Context, enrich.TranslateRequest) (*enrich.TranslateResponse, error) {
		return nil, fmt.Errorf("model unavailable")
	}

	status := f.post(t, "/api/translate", map[string]string{
		"text":              "hello",
		"practice_language": "ja",
		"native_language":   "en",
	}, nil)
	if status != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", status)
	}
}

func TestJournalAnalyze(t *testing.T) {
	t.Parallel()

	text := &llmmock.Provider{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: `{
				"corrected_text": "昨日映画を見ました。",
				"spans": [{"start": 2, "end": 4, "suggestion": "映画", "type": "spelling", "explanation": "Kanji form."}],
				"feedback": "Nice entry.",
				"improved_text": "昨日、映画を見に行きました。"
			}`}, nil
		},
	}
	analyzer, err := journal.NewAnalyzer(text)
	if err != nil {
		t.Fatalf("failed to create analyzer: %v", err)
	}

	f := newFixture(t, func(c *server.Config) { c.Journal = analyzer })

	var got journal.Analysis
	status := f.post(t, "/api/journal/analyze", map[string]string{
		"text":              "昨日えいがを見ました。",
		"practice_language": "ja",
		"native_language":   "en",
	}, &got)
	if status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if got.Feedback != "Nice entry." {
		t.Errorf("feedback: got %q", got.Feedback)
	}
	if len(got.Spans) != 1 || got.Spans[0].Type != "spelling" {
		t.Errorf("spans: got %+v", got.Spans)
	}
}

func TestJournalAnalyzeUnconfigured(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	status := f.post(t, "/api/journal/analyze", map[string]string{
		"text":              "hello",
		"practice_language": "ja",
		"native_language":   "en",
	}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", status)
	}
}

func TestVocabulary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ctx := context.Background()
	seed := []vocab.Entry{
		{Term: "いらっしゃいませ", Meaning: "welcome", Language: "ja", Source: "hotel"},
		{Term: "ありがとう", Meaning: "thank you", Language: "ja", Source: "restaurant"},
		{Term: "bonjour", Meaning: "hello", Language: "fr", Source: "hotel"},
	}
	for _, e := range seed {
		if err := f.words.Add(ctx, e); err != nil {
			t.Fatalf("seed vocabulary: %v", err)
		}
	}

	var got struct {
		Entries []vocab.Entry `json:"entries"`
	}
	if status := f.get(t, "/api/vocabulary?language=ja", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Entries) != 2 {
		t.Errorf("ja entries: got %d, want 2", len(got.Entries))
	}

	if status := f.get(t, "/api/vocabulary?language=ja&source=hotel", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Entries) != 1 || got.Entries[0].Term != "いらっしゃいませ" {
		t.Errorf("filtered entries: got %+v", got.Entries)
	}

	if status := f.get(t, "/api/vocabulary?language=xx", nil); status != http.StatusBadRequest {
		t.Errorf("unknown language status: got %d, want 400", status)
	}
}

func TestVocabularyEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var got struct {
		Entries []vocab.Entry `json:"entries"`
	}
	if status := f.get(t, "/api/vocabulary", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if got.Entries == nil {
		t.Error("entries should decode as an empty array, not null")
	}
}

func TestUpdateCatalogue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	replacement, err := scenario.New([]scenario.Chapter{
		{
			ID:    "travel",
			Title: "Travel",
			Conversations: []scenario.Scenario{
				{ID: "airport", Title: "At the airport", Instructions: "You are a check-in agent."},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to build catalogue: %v", err)
	}
	f.srv.UpdateCatalogue(replacement)

	var got struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}
	if status := f.get(t, "/api/scenarios", &got); status != http.StatusOK {
		t.Fatalf("status: got %d, want 200", status)
	}
	if len(got.Scenarios) != 1 || got.Scenarios[0].ID != "airport" {
		t.Errorf("scenarios after swap: got %+v", got.Scenarios)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if status := f.post(t, "/api/languages", map[string]string{}, nil); status != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", status)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if status := f.get(t, "/healthz", nil); status != http.StatusOK {
		t.Errorf("/healthz status: got %d, want 200", status)
	}
	if status := f.get(t, "/readyz", nil); status != http.StatusOK {
		t.Errorf("/readyz status: got %d, want 200", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if status := f.get(t, "/metrics", nil); status != http.StatusOK {
		t.Errorf("/metrics status: got %d, want 200", status)
	}
}

func TestStaticSPAFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mustWrite := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("index.html", "<html>multivox</html>")
	mustWrite("app.js", "console.log('multivox')")

	f := newFixture(t, func(c *server.Config) { c.StaticDir = dir })

	read := func(path string) (int, string) {
		resp, err := http.Get(f.ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		return resp.StatusCode, string(body)
	}

	if status, body := read("/"); status != http.StatusOK || !strings.Contains(body, "multivox") {
		t.Errorf("/: got %d %q", status, body)
	}
	if status, body := read("/app.js"); status != http.StatusOK || !strings.Contains(body, "console.log") {
		t.Errorf("/app.js: got %d %q", status, body)
	}
	// Client-side routes fall back to the SPA shell.
	if status, body := read("/practice/hotel"); status != http.StatusOK || !strings.Contains(body, "multivox") {
		t.Errorf("/practice/hotel: got %d %q", status, body)
	}
	// Traversal attempts stay inside the bundle dir.
	if status, body := read("/../go.mod"); status != http.StatusOK || !strings.Contains(body, "multivox") {
		t.Errorf("traversal: got %d %q", status, body)
	}
	// API paths never fall back to index.html.
	if status, _ := read("/api/nope"); status != http.StatusNotFound {
		t.Errorf("/api/nope: got %d, want 404", status)
	}
}
