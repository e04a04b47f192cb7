// internal/app/system/htmlsanitize/htmlsanitize.go

// Package htmlsanitize cleans user-supplied text before it is stored.
// Case notes may carry limited rich formatting; everything else
// (rejection reasons, flag notes, descriptions) is stored as plain text.
package htmlsanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy  = buildRichPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func buildRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	// Inline and block formatting allowed in case notes.
	p.AllowElements("p", "br", "strong", "em", "u", "s", "blockquote")
	p.AllowLists()
	p.AllowElements("pre", "code")

	// Links are kept but neutered: https only, rel=nofollow forced.
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "mailto")
	p.RequireNoFollowOnLinks(true)

	return p
}

// Note sanitizes rich-text note content, keeping the limited formatting
// set and stripping scripts, event handlers, and unsafe URLs.
func Note(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// Plain strips all markup from s, leaving text only. Used for free-text
// fields that are never rendered as HTML but should not store markup.
func Plain(s string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}
