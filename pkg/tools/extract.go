package tools

import "regexp"

var (
	answerTagRe  = regexp.MustCompile(`(?s)<answer>(.*?)</answer>`)
	replanTagRe  = regexp.MustCompile(`(?s)<replan>(.*?)</replan>`)
	rewordTagRe  = regexp.MustCompile(`(?s)<reworded_query>(.*?)</reworded_query>`)
	fencedCodeRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*\\n)?(.*?)```")
)

// extractAnswer returns the inner text of the first <answer> tag, if any.
func extractAnswer(text string) (string, bool) {
	m := answerTagRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return trimmed(m[1]), true
}

// extractReplan returns the inner text of the first <replan> tag, if any.
func extractReplan(text string) (string, bool) {
	m := replanTagRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return trimmed(m[1]), true
}

// extractRewordedQuery returns the inner text of the first
// <reworded_query> tag, falling back to the raw text when absent.
func extractRewordedQuery(text string) string {
	m := rewordTagRe.FindStringSubmatch(text)
	if m == nil {
		return trimmed(text)
	}
	return trimmed(m[1])
}

// extractLastFencedCode returns the contents of the last fenced code block
// in text, if any.
func extractLastFencedCode(text string) (string, bool) {
	matches := fencedCodeRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return trimmed(matches[len(matches)-1][1]), true
}

func trimmed(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
