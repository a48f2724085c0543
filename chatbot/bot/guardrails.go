package bot

import (
	"regexp"
	"strings"
)

// Guardrails cleans model output before it is posted to a channel.
type Guardrails struct {
	outputFilters []*regexp.Regexp // patterns masked with [REDACTED]
	mentions      *regexp.Regexp
	maxOutputSize int // runes
}

// NewGuardrails masks credential-looking text, defuses mass and role
// mentions and caps replies at one chat message.
func NewGuardrails() *Guardrails {
	return &Guardrails{
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password[:=]\s*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)secret[:=]\s*\S+`),
		},
		mentions:      regexp.MustCompile(`@(everyone|here)|<@&\d+>`),
		maxOutputSize: maxMessageLength,
	}
}

// SanitizeOutput returns output safe to post.
func (g *Guardrails) SanitizeOutput(output string) string {
	sanitized := output
	for _, filter := range g.outputFilters {
		sanitized = filter.ReplaceAllString(sanitized, "[REDACTED]")
	}
	// a zero-width space after @ keeps the text but not the ping
	sanitized = g.mentions.ReplaceAllStringFunc(sanitized, func(m string) string {
		return strings.Replace(m, "@", "@\u200b", 1)
	})
	return clipHead(sanitized, g.maxOutputSize)
}
