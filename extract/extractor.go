// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract turns uploaded files into plain text.
//
// Plain text and markdown files are read directly. PDF files are converted
// with the pdftotext tool from poppler-utils, which must be installed
// separately:
//
//	macOS:  brew install poppler
//	Debian: apt install poppler-utils
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command and returns its stdout.
// It exists so tests can run without the real pdftotext binary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor extracts plain text from supported document files.
type Extractor struct {
	runner CommandRunner
	logger *slog.Logger
}

// ExtractorOption is a functional option for configuring an Extractor.
type ExtractorOption func(*Extractor)

// WithRunner replaces the command runner used for PDF conversion.
func WithRunner(runner CommandRunner) ExtractorOption {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// New creates an Extractor.
func New(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		runner: execRunner{},
		logger: slog.Default().With("component", "extractor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CanExtract reports whether the content type has an extractor.
func (e *Extractor) CanExtract(contentType string) bool {
	switch contentType {
	case "text/plain", "text/markdown", "application/pdf":
		return true
	}
	return false
}

// Extract reads the file at path and returns its plain text content.
// Returns ErrUnsupportedType for content types CanExtract rejects.
func (e *Extractor) Extract(ctx context.Context, path, contentType string) (string, error) {
	switch contentType {
	case "text/plain", "text/markdown":
		return e.extractText(path)
	case "application/pdf":
		return e.extractPDF(ctx, path)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
}

func (e *Extractor) extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	return string(data), nil
}

// extractPDF shells out to pdftotext, writing the result to stdout via the
// "-" output argument.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	// Only probe PATH when the real runner is in use.
	if _, ok := e.runner.(execRunner); ok {
		if _, err := exec.LookPath("pdftotext"); err != nil {
			e.logger.Error("pdftotext is not installed", "err", err)
			return "", ErrPDFToolNotFound
		}
	}

	output, err := e.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		e.logger.Error("pdftotext failed", "path", path, "err", err)
		return "", fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	return strings.TrimSpace(string(output)), nil
}
