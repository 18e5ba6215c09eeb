package logging

import (
	"fmt"
	"regexp"
)

var (
	reBearer  = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._-]+)`)
	reAPIKey  = regexp.MustCompile(`(?i)(apikey=|api_key=|key=)([^\s&;]+)`)
	reGroq    = regexp.MustCompile(`gsk_[A-Za-z0-9]{8,}`)
	reOpenAI  = regexp.MustCompile(`sk-[A-Za-z0-9_-]{8,}`)
	reGoogle  = regexp.MustCompile(`AIza[0-9A-Za-z_-]{20,}`)
	reEnvPair = regexp.MustCompile(`((?:GROQ|OPENAI|OPENROUTER|GEMINI|INSIGHT)_API_KEY=)(\S+)`)
)

// Mask replaces credential-looking values in s with "***".
func Mask(s string) string {
	out := s
	out = reEnvPair.ReplaceAllString(out, "$1***")
	out = reBearer.ReplaceAllString(out, "$1***")
	out = reAPIKey.ReplaceAllString(out, "$1***")
	out = reGroq.ReplaceAllString(out, "gsk_***")
	out = reOpenAI.ReplaceAllString(out, "sk-***")
	out = reGoogle.ReplaceAllString(out, "AIza***")
	return out
}

// MaskKey shortens a credential for display, keeping only its edges.
func MaskKey(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "******"
	}
	return s[:4] + "****" + s[len(s)-3:]
}

// PresentError formats an error for the user with secrets masked.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Mask(err.Error())
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}
