// Package journal analyzes written practice entries. The learner submits
// free-form text in the practice language and gets back inline corrections,
// overall feedback, and a polished rewrite.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rjpio/multivox/internal/chat"
	"github.com/rjpio/multivox/pkg/provider/llm"
)

// AnalyzeRequest is one journal entry to review.
type AnalyzeRequest struct {
	Text     string
	Practice chat.Language
	Native   chat.Language
}

// CorrectionSpan marks one correction inside the original text.
type CorrectionSpan struct {
	// Start and End are character indices into the submitted text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Suggestion is the replacement, in the practice language.
	Suggestion string `json:"suggestion"`

	// Type is one of "grammar", "spelling", "style", "vocabulary".
	Type string `json:"type"`

	// Explanation is a brief note in the learner's native language.
	Explanation string `json:"explanation"`
}

// Analysis is the reviewer's full response.
type Analysis struct {
	CorrectedText string           `json:"corrected_text"`
	Spans         []CorrectionSpan `json:"spans"`
	Feedback      string           `json:"feedback"`
	ImprovedText  string           `json:"improved_text"`
}

// Analyzer reviews journal entries with a text LLM.
type Analyzer struct {
	text   llm.Provider
	logger *slog.Logger
}

// Option is a functional option for Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// NewAnalyzer builds an Analyzer on top of the given LLM provider.
func NewAnalyzer(text llm.Provider, opts ...Option) (*Analyzer, error) {
	if text == nil {
		return nil, errors.New("journal: text provider must not be nil")
	}
	a := &Analyzer{text: text, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Analyze reviews one journal entry.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("journal: text must not be empty")
	}

	completion, err := a.text.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: buildPrompt(req)}},
	})
	if err != nil {
		return nil, fmt.Errorf("journal: analyze: %w", err)
	}

	content := strings.TrimSpace(completion.Content)
	if after, ok := strings.CutPrefix(content, "```json"); ok {
		content = after
	} else if after, ok := strings.CutPrefix(content, "```"); ok {
		content = after
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	var analysis Analysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		snippet := content
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		return nil, fmt.Errorf("journal: parse model response %q: %w", snippet, err)
	}
	return &analysis, nil
}

func buildPrompt(req AnalyzeRequest) string {
	return render(journalPrompt, map[string]string{
		"practice_language": req.Practice.Name,
		"native_language":   req.Native.Name,
		"text":              req.Text,
	})
}

func render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{"+k+"}", v)
	}
	return tmpl
}

const journalPrompt = `
I'm learning to write in {practice_language}. My native language is {native_language}.
Please analyze the following journal entry:

"{text}"

Format your response as valid JSON with this exact structure:
{
    "corrected_text": "Text with simple corrections",
    "spans": [
        {
            "start": 0,
            "end": 5,
            "suggestion": "Better wording",
            "type": "grammar|spelling|style|vocabulary",
            "explanation": "Brief explanation in {native_language}"
        }
    ],
    "feedback": "Overall assessment of writing in {native_language}",
    "improved_text": "A more polished version of the original text"
}

"spans" should include character position indices for each correction, so they can be highlighted inline:
- start/end are character indices
- suggestion is what to replace it with (in {practice_language})
- type should be one of: "grammar", "spelling", "style", "vocabulary"
- explanation should be brief and helpful in {native_language}
- feedback should be in {native_language}

Don't make too many corrections - focus on the most important ones.
`
