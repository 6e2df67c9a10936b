package converter

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DetectFormat picks a format from the filename extension, falling back to
// content sniffing when the extension is missing or unknown. Returns an
// empty string when nothing matches.
func DetectFormat(filename string, raw []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return "txt"
	case ".md", ".markdown":
		return "md"
	case ".docx":
		return "docx"
	case ".html", ".htm":
		return "html"
	case ".rtf":
		return "rtf"
	case ".odt":
		return "odt"
	case ".epub":
		return "epub"
	case ".tex":
		return "latex"
	case ".pdf":
		return "pdf"
	}
	return sniffFormat(raw)
}

func sniffFormat(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte("PK\x03\x04")):
		// Both docx and odt are zip containers; docx carries word/.
		if bytes.Contains(raw, []byte("word/")) {
			return "docx"
		}
		return "odt"
	case bytes.HasPrefix(raw, []byte("%PDF")):
		return "pdf"
	case bytes.HasPrefix(raw, []byte("{\\rtf")):
		return "rtf"
	}

	head := strings.ToLower(string(raw[:min(len(raw), 256)]))
	if strings.Contains(head, "<!doctype html") || strings.Contains(head, "<html") {
		return "html"
	}

	// NUL bytes mean binary even when the bytes happen to be valid UTF-8.
	if utf8.Valid(raw) && !bytes.ContainsRune(raw, 0) {
		return "txt"
	}
	return ""
}
