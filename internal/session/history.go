package session

import (
	"fmt"
	"strings"

	"github.com/rjpio/multivox/internal/chat"
)

// promptContext condenses the bus history into the scenario description and a
// transcript for enrichment prompts. Each spoken or typed turn becomes one
// "> role: text" line; derived messages other than transcriptions are skipped
// because their content restates a turn already listed.
func promptContext(history []*chat.Message) (scenario, transcript string) {
	var b strings.Builder
	for _, msg := range history {
		switch msg.Kind {
		case chat.KindInitialize:
			scenario = msg.Text
		case chat.KindTranscription:
			if msg.SourceText != "" {
				fmt.Fprintf(&b, "> %s: %s\n", msg.Role, msg.SourceText)
			}
		case chat.KindText:
			if msg.Text != "" {
				fmt.Fprintf(&b, "> %s: %s\n", msg.Role, msg.Text)
			}
		}
	}
	return scenario, b.String()
}
