package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/internal/enrich"
	"github.com/rjpio/multivox/internal/journal"
	"github.com/rjpio/multivox/internal/scenario"
	"github.com/rjpio/multivox/internal/vocab"
	"github.com/rjpio/multivox/pkg/audio"
)

// maxBodyBytes bounds JSON request bodies. Transcription requests carry
// base64 PCM, so the limit is generous.
const maxBodyBytes = 16 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// languagePair resolves a practice/native code pair against the closed
// language set.
func languagePair(practiceCode, nativeCode string) (practice, native chat.Language, err error) {
	practice, err = chat.LookupLanguage(practiceCode)
	if err != nil {
		return chat.Language{}, chat.Language{}, fmt.Errorf("practice_language: %w", err)
	}
	native, err = chat.LookupLanguage(nativeCode)
	if err != nil {
		return chat.Language{}, chat.Language{}, fmt.Errorf("native_language: %w", err)
	}
	return practice, native, nil
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Languages []chat.Language `json:"languages"`
	}{Languages: chat.Languages()})
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Scenarios []scenario.Scenario `json:"scenarios"`
	}{Scenarios: s.scenarios().Scenarios()})
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.scenarios().Scenario(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleChapters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Chapters []scenario.Chapter `json:"chapters"`
	}{Chapters: s.scenarios().Chapters()})
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	ch, err := s.scenarios().Chapter(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

type translateRequest struct {
	Text             string `json:"text"`
	PracticeLanguage string `json:"practice_language"`
	NativeLanguage   string `json:"native_language"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	practice, native, err := languagePair(req.PracticeLanguage, req.NativeLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.cfg.Enricher.Translate(r.Context(), enrich.TranslateRequest{
		Text:   req.Text,
		Source: practice,
		Target: native,
	})
	if err != nil {
		s.logger.Error("translate failed", "err", err)
		writeError(w, http.StatusBadGateway, "translation failed")
		return
	}
	s.harvest(r, resp.Dictionary, practice.Abbreviation)
	writeJSON(w, http.StatusOK, resp)
}

type transcribeRequest struct {
	// Audio is base64-encoded mono 16-bit PCM.
	Audio    []byte `json:"audio"`
	MimeType string `json:"mime_type"`

	PracticeLanguage string `json:"practice_language"`
	NativeLanguage   string `json:"native_language"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if len(req.Audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio is required")
		return
	}
	practice, native, err := languagePair(req.PracticeLanguage, req.NativeLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mime := req.MimeType
	if mime == "" {
		mime = audio.PCMMime(audio.ClientSampleRate)
	}

	resp, err := s.cfg.Enricher.Transcribe(r.Context(), enrich.TranscribeRequest{
		PCM:      req.Audio,
		MimeType: mime,
		Source:   practice,
		Target:   native,
	})
	if err != nil {
		s.logger.Error("transcribe failed", "err", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	s.harvest(r, resp.Dictionary, practice.Abbreviation)
	writeJSON(w, http.StatusOK, resp)
}

type hintsRequest struct {
	History          string `json:"history"`
	Scenario         string `json:"scenario"`
	PracticeLanguage string `json:"practice_language"`
	NativeLanguage   string `json:"native_language"`
}

func (s *Server) handleHints(w http.ResponseWriter, r *http.Request) {
	var req hintsRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.History == "" {
		writeError(w, http.StatusBadRequest, "history is required")
		return
	}
	practice, native, err := languagePair(req.PracticeLanguage, req.NativeLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.cfg.Enricher.Hints(r.Context(), enrich.HintRequest{
		History:  req.History,
		Scenario: req.Scenario,
		Source:   practice,
		Target:   native,
	})
	if err != nil {
		s.logger.Error("hints failed", "err", err)
		writeError(w, http.StatusBadGateway, "hint generation failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type journalAnalyzeRequest struct {
	Text             string `json:"text"`
	PracticeLanguage string `json:"practice_language"`
	NativeLanguage   string `json:"native_language"`
}

func (s *Server) handleJournalAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, http.StatusServiceUnavailable, "journal analysis is not configured")
		return
	}
	var req journalAnalyzeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	practice, native, err := languagePair(req.PracticeLanguage, req.NativeLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := s.cfg.Journal.Analyze(r.Context(), journal.AnalyzeRequest{
		Text:     req.Text,
		Practice: practice,
		Native:   native,
	})
	if err != nil {
		s.logger.Error("journal analysis failed", "err", err)
		writeError(w, http.StatusBadGateway, "journal analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleVocabulary(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Vocabulary == nil {
		writeError(w, http.StatusServiceUnavailable, "vocabulary store is not configured")
		return
	}
	q := r.URL.Query()
	if code := q.Get("language"); code != "" {
		if _, err := chat.LookupLanguage(code); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("language: %v", err))
			return
		}
	}

	entries, err := s.cfg.Vocabulary.List(r.Context(), vocab.Filter{
		Language: q.Get("language"),
		Source:   q.Get("source"),
	})
	if err != nil {
		s.logger.Error("vocabulary list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "vocabulary lookup failed")
		return
	}
	if entries == nil {
		entries = []vocab.Entry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []vocab.Entry `json:"entries"`
	}{Entries: entries})
}

// harvest records a dictionary from an on-demand enrichment call. Failures are
// logged only; the enrichment response still goes out.
func (s *Server) harvest(r *http.Request, dict map[string]chat.DictionaryEntry, language string) {
	if s.cfg.Vocabulary == nil || len(dict) == 0 {
		return
	}
	if err := vocab.Harvest(r.Context(), s.cfg.Vocabulary, dict, language, "api"); err != nil {
		s.logger.Warn("vocabulary harvest failed", "err", err)
	}
}
