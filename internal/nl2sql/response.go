package nl2sql

import (
	"strings"
	"unicode"
)

// Statement is the cleaned model output. Recognized is false when the text
// did not start with a known statement keyword but was passed through anyway.
type Statement struct {
	Text       string
	Recognized bool
}

var statementKeywords = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "EXEC", "DECLARE"}

var refusalPhrases = []string{"cannot generate", "missing schema", "error retrieving schema"}

var sqlFenceTags = map[string]bool{
	"sql":          true,
	"tsql":         true,
	"t-sql":        true,
	"mssql":        true,
	"sqlserver":    true,
	"transact-sql": true,
}

// Sanitize strips markdown fences and trailing terminators from a raw model
// response. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	for {
		next := sanitizeOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizeOnce(text string) string {
	text = strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(text, "```"); ok {
		text = stripFenceTag(rest)
	}
	if rest, ok := strings.CutSuffix(strings.TrimSpace(text), "```"); ok {
		text = rest
	}
	text = strings.TrimRightFunc(text, func(r rune) bool {
		return r == ';' || unicode.IsSpace(r)
	})
	return strings.TrimSpace(text)
}

// stripFenceTag removes the info string that may follow an opening fence.
func stripFenceTag(rest string) string {
	line, body, hasNewline := strings.Cut(rest, "\n")
	tag := strings.TrimSpace(line)
	if tag == "" {
		return body
	}
	if hasNewline && isFenceTag(tag) {
		return body
	}
	word, after, found := strings.Cut(strings.TrimLeft(rest, " \t"), " ")
	if found && sqlFenceTags[strings.ToLower(word)] {
		return after
	}
	return rest
}

func isFenceTag(tag string) bool {
	if sqlFenceTags[strings.ToLower(tag)] {
		return true
	}
	if startsWithKeyword(tag) {
		return false
	}
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("-+_#.", r) {
			return false
		}
	}
	return true
}

// ClassifyResponse decides what a sanitized response is. Text starting with a
// statement keyword is a recognized statement. Text that reads like a refusal
// is a *DeclinedError. Anything else passes through unrecognized.
func ClassifyResponse(text string) (Statement, error) {
	if startsWithKeyword(text) {
		return Statement{Text: text, Recognized: true}, nil
	}
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return Statement{}, &DeclinedError{Message: text}
		}
	}
	return Statement{Text: text}, nil
}

func startsWithKeyword(text string) bool {
	upper := strings.ToUpper(text)
	for _, keyword := range statementKeywords {
		rest, ok := strings.CutPrefix(upper, keyword)
		if !ok {
			continue
		}
		if rest == "" || !isWordRune([]rune(rest)[0]) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
