package enrich

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/rjpio/multivox/internal/chat"
)

// chunkSimilarityFloor is the minimum normalized similarity between the
// source text and the concatenation of its chunks. Model output below this
// has usually dropped or paraphrased part of the sentence.
const chunkSimilarityFloor = 0.8

// ValidateChunks checks that the chunked phrases, concatenated, still spell
// the source text. Whitespace and punctuation are ignored so that chunking
// on phrase boundaries never counts as divergence.
func ValidateChunks(source string, chunked []string) error {
	if source == "" || len(chunked) == 0 {
		return nil
	}

	want := normalizeForAlignment(source)
	got := normalizeForAlignment(strings.Join(chunked, ""))
	if want == "" || got == "" {
		return nil
	}

	sim := similarity(want, got)
	if sim < chunkSimilarityFloor {
		return fmt.Errorf("chunked text matches source at %.2f, floor is %.2f", sim, chunkSimilarityFloor)
	}
	return nil
}

// UncoveredChunks returns the chunks that have no dictionary entry, either
// as a key or as an entry's source text. Common function words are expected
// to be uncovered; callers log the result rather than failing on it.
func UncoveredChunks(chunked []string, dict map[string]chat.DictionaryEntry) []string {
	if len(chunked) == 0 || len(dict) == 0 {
		return nil
	}

	covered := make(map[string]bool, len(dict)*2)
	for key, entry := range dict {
		covered[normalizeForAlignment(key)] = true
		covered[normalizeForAlignment(entry.SourceText)] = true
	}

	var missing []string
	for _, chunk := range chunked {
		if !covered[normalizeForAlignment(chunk)] {
			missing = append(missing, chunk)
		}
	}
	return missing
}

// similarity is 1 minus the Damerau-Levenshtein distance normalized by the
// longer string's rune count.
func similarity(a, b string) float64 {
	dist := matchr.DamerauLevenshtein(a, b)
	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(longest)
}

func normalizeForAlignment(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
