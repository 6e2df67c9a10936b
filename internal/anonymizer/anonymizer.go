// Package anonymizer scrubs patient-identifying text from clinical
// reports before they are chunked, indexed, or sent to a model.
package anonymizer

import (
	"regexp"
	"strings"
)

// pronounReplacements neutralizes gendered pronouns. Replacements use the
// a/b form so a second pass leaves already-scrubbed text untouched.
var pronounReplacements = map[string]string{
	"he":      "he/she",
	"she":     "he/she",
	"his":     "his/her",
	"her":     "his/her",
	"him":     "him/her",
	"himself": "himself/herself",
	"herself": "himself/herself",
}

var genderReplacements = map[string]string{
	"man":      "man/woman",
	"woman":    "man/woman",
	"boy":      "boy/girl",
	"girl":     "boy/girl",
	"son":      "son/daughter",
	"daughter": "son/daughter",
}

var (
	nameLine = regexp.MustCompile(`(?m)^Name:[ \t]+(\S+)[ \t]+(.+)$`)
	wordRe   = regexp.MustCompile(`[A-Za-z]+`)
)

// Scrub removes the patient's name and neutralizes gendered language.
// Scrubbing is idempotent: running it on already-scrubbed text is a no-op.
func Scrub(text string) string {
	if first, last, ok := PatientName(text); ok {
		text = replaceName(text, first, "[FIRST_NAME]")
		text = replaceName(text, last, "[LAST_NAME]")
	}

	text = replaceWords(text, pronounReplacements)
	text = replaceWords(text, genderReplacements)
	return text
}

// PatientName extracts the patient's first and last name from a
// "Name: First Last" line. Reports without one are passed through
// without name scrubbing.
func PatientName(text string) (first, last string, ok bool) {
	m := nameLine.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

func replaceName(text, name, placeholder string) string {
	if name == "" {
		return text
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	return re.ReplaceAllString(text, placeholder)
}

// replaceWords rewrites whole words per the replacement map, preserving
// sentence-initial capitalization. Words adjacent to a slash are part of
// an earlier replacement and are left alone.
func replaceWords(text string, repl map[string]string) string {
	var b strings.Builder
	last := 0

	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		b.WriteString(text[last:start])
		last = end
		word := text[start:end]

		if (start > 0 && text[start-1] == '/') || (end < len(text) && text[end] == '/') {
			b.WriteString(word)
			continue
		}

		lower := strings.ToLower(word)
		replacement, ok := repl[lower]
		if !ok {
			b.WriteString(word)
			continue
		}

		switch word {
		case lower:
			b.WriteString(replacement)
		case capitalize(lower):
			b.WriteString(capitalizeAlternatives(replacement))
		default:
			// Unusual casing (e.g. all caps) is left as-is rather than guessed at.
			b.WriteString(word)
		}
	}

	b.WriteString(text[last:])
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// capitalizeAlternatives capitalizes each word in an a/b replacement,
// so "he/she" becomes "He/She" at sentence starts.
func capitalizeAlternatives(s string) string {
	parts := strings.Split(s, "/")
	for i := range parts {
		parts[i] = capitalize(parts[i])
	}
	return strings.Join(parts, "/")
}
