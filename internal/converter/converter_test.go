package converter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConvertPlainText(t *testing.T) {
	c := New("pandoc", time.Second)

	text, err := c.Convert(context.Background(), []byte("hello\r\nworld\r\n\r\n\r\nagain"), "txt")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if text != "hello\nworld\n\nagain" {
		t.Errorf("unexpected normalized text: %q", text)
	}
}

func TestConvertIsIdempotent(t *testing.T) {
	c := New("pandoc", time.Second)
	raw := []byte("Paragraph one.\n\nParagraph two.")

	first, err := c.Convert(context.Background(), raw, "txt")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	second, err := c.Convert(context.Background(), raw, "txt")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if first != second {
		t.Error("conversion of identical bytes should yield identical text")
	}
}

func TestConvertMarkdown(t *testing.T) {
	c := New("pandoc", time.Second)
	raw := []byte("# Assessment\n\nPatient presented with *mild* symptoms.\n\n- item one\n- item two\n")

	text, err := c.Convert(context.Background(), raw, "md")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(text, "Assessment") {
		t.Errorf("heading text missing: %q", text)
	}
	if !strings.Contains(text, "Patient presented with mild symptoms.") {
		t.Errorf("markdown markers should be stripped: %q", text)
	}
	if strings.Contains(text, "#") || strings.Contains(text, "*") {
		t.Errorf("markdown syntax leaked into plain text: %q", text)
	}
}

func TestConvertUnsupportedFormat(t *testing.T) {
	c := New("pandoc", time.Second)

	_, err := c.Convert(context.Background(), []byte("%PDF-1.7"), "pdf")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Reason != ReasonUnsupportedFormat {
		t.Errorf("expected unsupported-format, got %q", convErr.Reason)
	}
}

func TestConvertBinaryMissing(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "no-such-pandoc"), time.Second)

	_, err := c.Convert(context.Background(), []byte("PK\x03\x04word/"), "docx")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Reason != ReasonServiceUnavailable {
		t.Errorf("expected service-unavailable, got %q", convErr.Reason)
	}
}

// writeScript creates an executable stand-in for the conversion binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pandoc")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestConvertSubprocessSuccess(t *testing.T) {
	path := writeScript(t, "cat >/dev/null\necho 'Converted text.'\n")
	c := New(path, time.Second)

	text, err := c.Convert(context.Background(), []byte("PK\x03\x04word/"), "docx")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if text != "Converted text." {
		t.Errorf("got %q", text)
	}
}

func TestConvertCorruptInput(t *testing.T) {
	path := writeScript(t, "cat >/dev/null\necho 'couldn'\\''t parse docx' >&2\nexit 1\n")
	c := New(path, time.Second)

	_, err := c.Convert(context.Background(), []byte("garbage"), "docx")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Reason != ReasonCorruptInput {
		t.Errorf("expected corrupt-input, got %q", convErr.Reason)
	}
}

func TestConvertUnknownInputFormatFromBinary(t *testing.T) {
	path := writeScript(t, "cat >/dev/null\necho 'Unknown input format xyz' >&2\nexit 21\n")
	c := New(path, time.Second)

	_, err := c.Convert(context.Background(), []byte("data"), "rtf")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Reason != ReasonUnsupportedFormat {
		t.Errorf("expected unsupported-format, got %q", convErr.Reason)
	}
}

func TestConvertTimeout(t *testing.T) {
	path := writeScript(t, "sleep 5\n")
	c := New(path, 100*time.Millisecond)

	_, err := c.Convert(context.Background(), []byte("data"), "docx")
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.Reason != ReasonServiceUnavailable {
		t.Errorf("expected service-unavailable on timeout, got %q", convErr.Reason)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		filename string
		raw      []byte
		want     string
	}{
		{"report.docx", nil, "docx"},
		{"notes.md", nil, "md"},
		{"summary.txt", nil, "txt"},
		{"scan.pdf", nil, "pdf"},
		{"upload", []byte("PK\x03\x04...word/document.xml"), "docx"},
		{"upload", []byte("%PDF-1.4"), "pdf"},
		{"upload", []byte("{\\rtf1"), "rtf"},
		{"upload", []byte("<!DOCTYPE html><html>"), "html"},
		{"upload", []byte("just some text"), "txt"},
		{"upload", []byte{0xff, 0xfe, 0x00, 0x01}, ""},
	}

	for _, tc := range cases {
		if got := DetectFormat(tc.filename, tc.raw); got != tc.want {
			t.Errorf("DetectFormat(%q): got %q, want %q", tc.filename, got, tc.want)
		}
	}
}
