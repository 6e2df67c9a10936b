// Package converter normalizes uploaded documents into plain text.
//
// Plain text and markdown are handled in-process. Everything else is
// delegated to a pandoc subprocess, one process per document, so a
// malformed file cannot take down processing of other documents.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// Reason classifies why a conversion failed.
type Reason string

const (
	ReasonUnsupportedFormat  Reason = "unsupported-format"
	ReasonCorruptInput       Reason = "corrupt-input"
	ReasonServiceUnavailable Reason = "service-unavailable"
)

// ConversionError is the classified failure surfaced to callers. The raw
// subprocess error stays wrapped and never reaches API responses.
type ConversionError struct {
	Reason Reason
	Format string
	Err    error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("converting %s document: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("converting %s document: %s", e.Format, e.Reason)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// pandocFormats maps declared formats to pandoc reader names.
var pandocFormats = map[string]string{
	"docx":  "docx",
	"html":  "html",
	"rtf":   "rtf",
	"odt":   "odt",
	"epub":  "epub",
	"latex": "latex",
}

// Converter turns raw document bytes into normalized plain text.
type Converter struct {
	pandocPath string
	timeout    time.Duration
}

// New creates a Converter that shells out to the given pandoc binary with
// a per-document timeout.
func New(pandocPath string, timeout time.Duration) *Converter {
	return &Converter{pandocPath: pandocPath, timeout: timeout}
}

// Convert normalizes raw bytes of the declared format into plain text.
// Conversion is idempotent: the same bytes always produce the same text.
func (c *Converter) Convert(ctx context.Context, raw []byte, format string) (string, error) {
	switch format {
	case "txt", "text":
		return normalize(string(raw)), nil
	case "md", "markdown":
		return normalize(markdownToText(raw)), nil
	}

	reader, ok := pandocFormats[format]
	if !ok {
		return "", &ConversionError{Reason: ReasonUnsupportedFormat, Format: format}
	}
	return c.runPandoc(ctx, raw, reader, format)
}

// runPandoc executes one isolated pandoc process for the document.
func (c *Converter) runPandoc(ctx context.Context, raw []byte, reader, format string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.pandocPath, "-f", reader, "-t", "plain", "--wrap=none")
	cmd.Stdin = bytes.NewReader(raw)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return normalize(stdout.String()), nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", &ConversionError{Reason: ReasonServiceUnavailable, Format: format,
			Err: fmt.Errorf("conversion timed out after %s", c.timeout)}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return "", &ConversionError{Reason: ReasonServiceUnavailable, Format: format, Err: err}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.ToLower(stderr.String())
		if strings.Contains(msg, "unknown input format") || strings.Contains(msg, "unsupported") {
			return "", &ConversionError{Reason: ReasonUnsupportedFormat, Format: format,
				Err: fmt.Errorf("pandoc: %s", strings.TrimSpace(stderr.String()))}
		}
		return "", &ConversionError{Reason: ReasonCorruptInput, Format: format,
			Err: fmt.Errorf("pandoc exit %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))}
	}

	return "", &ConversionError{Reason: ReasonServiceUnavailable, Format: format, Err: err}
}

// normalize standardizes line endings, strips NUL bytes and invalid UTF-8,
// and collapses runs of blank lines to a single paragraph break.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ToValidUTF8(s, "")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	s = strings.Join(lines, "\n")

	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}
