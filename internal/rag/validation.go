// internal/rag/validation.go
package rag

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// unsafePatterns match inputs that have no business in a chat query and
// would otherwise be echoed back through the web surface.
var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// ValidateQuery trims, bounds-checks, and sanitizes a raw user query,
// returning the cleaned query. Rejected queries never reach the embedder.
func ValidateQuery(query string, minLength, maxLength int) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", &ValidationError{Msg: "query cannot be empty"}
	}
	// Length bounds count characters, not bytes, so multibyte text is not
	// rejected early.
	length := utf8.RuneCountInString(query)
	if length > maxLength {
		return "", &ValidationError{Msg: fmt.Sprintf("query too long, maximum %d characters", maxLength)}
	}
	if length < minLength {
		return "", &ValidationError{Msg: fmt.Sprintf("query too short, minimum %d characters", minLength)}
	}
	for _, r := range query {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return "", &ValidationError{Msg: "query contains control characters"}
		}
	}
	for _, pattern := range unsafePatterns {
		if pattern.MatchString(query) {
			return "", &ValidationError{Msg: "query contains potentially unsafe content"}
		}
	}
	return whitespaceRun.ReplaceAllString(query, " "), nil
}
