package chat

import (
	"fmt"
	"sort"
)

// Language describes one practice or native language. The set of supported
// languages is closed at startup; handlers validate incoming codes against
// [Languages].
type Language struct {
	// Abbreviation is the ISO-639-1 code ("ja", "en").
	Abbreviation string `json:"abbreviation"`

	// Name is the English display name.
	Name string `json:"name"`

	// TTSLanguageCode is the Google Cloud TTS locale ("ja-JP"). Empty when
	// the language has no configured synthesis voice.
	TTSLanguageCode string `json:"tts_language_code,omitempty"`

	// TTSVoiceName is the Google Cloud TTS voice name. Empty when the
	// language has no configured synthesis voice.
	TTSVoiceName string `json:"tts_voice_name,omitempty"`
}

// HasVoice reports whether the language has a configured TTS voice.
func (l Language) HasVoice() bool {
	return l.TTSLanguageCode != "" && l.TTSVoiceName != ""
}

// languages is the closed language set, keyed by ISO-639-1 code.
var languages = map[string]Language{
	"en": {Abbreviation: "en", Name: "English", TTSLanguageCode: "en-US", TTSVoiceName: "en-US-Neural2-C"},
	"ja": {Abbreviation: "ja", Name: "Japanese", TTSLanguageCode: "ja-JP", TTSVoiceName: "ja-JP-Neural2-B"},
	"es": {Abbreviation: "es", Name: "Spanish", TTSLanguageCode: "es-ES", TTSVoiceName: "es-ES-Neural2-A"},
	"fr": {Abbreviation: "fr", Name: "French", TTSLanguageCode: "fr-FR", TTSVoiceName: "fr-FR-Neural2-A"},
	"de": {Abbreviation: "de", Name: "German", TTSLanguageCode: "de-DE", TTSVoiceName: "de-DE-Neural2-F"},
	"it": {Abbreviation: "it", Name: "Italian", TTSLanguageCode: "it-IT", TTSVoiceName: "it-IT-Neural2-A"},
	"zh": {Abbreviation: "zh", Name: "Chinese", TTSLanguageCode: "cmn-CN", TTSVoiceName: "cmn-CN-Standard-A"},
	"ko": {Abbreviation: "ko", Name: "Korean", TTSLanguageCode: "ko-KR", TTSVoiceName: "ko-KR-Neural2-A"},
	"ru": {Abbreviation: "ru", Name: "Russian", TTSLanguageCode: "ru-RU", TTSVoiceName: "ru-RU-Standard-A"},
	"pt": {Abbreviation: "pt", Name: "Portuguese", TTSLanguageCode: "pt-BR", TTSVoiceName: "pt-BR-Neural2-A"},
	"ar": {Abbreviation: "ar", Name: "Arabic"},
	"hi": {Abbreviation: "hi", Name: "Hindi"},
	"nl": {Abbreviation: "nl", Name: "Dutch", TTSLanguageCode: "nl-NL", TTSVoiceName: "nl-NL-Standard-A"},
	"pl": {Abbreviation: "pl", Name: "Polish", TTSLanguageCode: "pl-PL", TTSVoiceName: "pl-PL-Standard-A"},
	"tr": {Abbreviation: "tr", Name: "Turkish", TTSLanguageCode: "tr-TR", TTSVoiceName: "tr-TR-Standard-A"},
	"vi": {Abbreviation: "vi", Name: "Vietnamese", TTSLanguageCode: "vi-VN", TTSVoiceName: "vi-VN-Standard-A"},
}

// LookupLanguage returns the Language for an ISO-639-1 code.
func LookupLanguage(code string) (Language, error) {
	lang, ok := languages[code]
	if !ok {
		return Language{}, fmt.Errorf("chat: unsupported language %q", code)
	}
	return lang, nil
}

// Languages returns every supported language sorted by abbreviation.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for _, l := range languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out
}
