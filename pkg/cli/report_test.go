package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/RazmikMkrtchyan/raml2html/pkg/raml"
	"github.com/RazmikMkrtchyan/raml2html/pkg/render"
)

// captureStderr runs fn with stderr redirected to a pipe and returns what was
// written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create pipe: %v", err)
	}
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = oldStderr

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func badTypeError() raml.ParserError {
	return raml.ParserError{
		Code:    "E1",
		Message: "bad type",
		Path:    "a.raml",
		Range:   &raml.Range{Start: raml.Position{Line: 3, Column: 5}},
	}
}

func TestReportFailureFormatsDiagnostics(t *testing.T) {
	failure := &render.Failure{ParserErrors: raml.ErrorList{badTypeError()}}
	opts := RenderOptions{Input: "docs/api.raml"}

	output := captureStderr(t, func() {
		reportFailure(failure, opts)
	})

	if !strings.Contains(output, "E1: bad type (docs/a.raml:3:5)") {
		t.Errorf("Expected formatted diagnostic with joined location, got: %s", output)
	}
}

func TestReportFailureMessageAndDiagnosticsAreIndependent(t *testing.T) {
	tests := []struct {
		name    string
		failure *render.Failure
		want    []string
	}{
		{
			name:    "message only",
			failure: &render.Failure{Message: "template broke"},
			want:    []string{"template broke"},
		},
		{
			name:    "diagnostics only",
			failure: &render.Failure{ParserErrors: raml.ErrorList{badTypeError()}},
			want:    []string{"E1: bad type"},
		},
		{
			name: "both",
			failure: &render.Failure{
				Message:      "template broke",
				ParserErrors: raml.ErrorList{badTypeError()},
			},
			want: []string{"template broke", "E1: bad type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureStderr(t, func() {
				reportFailure(tt.failure, RenderOptions{Input: "api.raml"})
			})
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("Expected output to contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestReportFailureSuppressWarnings(t *testing.T) {
	warning := raml.ParserError{Code: "W1", Message: "deprecated", IsWarning: true}
	failure := &render.Failure{ParserErrors: raml.ErrorList{warning, badTypeError()}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", SuppressWarnings: true})
	})

	if strings.Contains(output, "W1") {
		t.Errorf("Expected warning to be suppressed, got: %s", output)
	}
	if !strings.Contains(output, "E1: bad type") {
		t.Errorf("Expected the hard error to remain, got: %s", output)
	}
}

func TestReportFailureRawErrors(t *testing.T) {
	failure := &render.Failure{ParserErrors: raml.ErrorList{badTypeError()}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", RawErrors: true})
	})

	var decoded []raml.ParserError
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &decoded); err != nil {
		t.Fatalf("Expected a JSON array on stderr, got %q: %v", output, err)
	}
	if len(decoded) != 1 || decoded[0].Code != "E1" {
		t.Errorf("Unexpected raw dump contents: %+v", decoded)
	}
	if decoded[0].Range == nil || decoded[0].Range.Start.Line != 3 || decoded[0].Range.Start.Column != 5 {
		t.Errorf("Expected the position to survive the dump, got: %+v", decoded[0].Range)
	}
}

func TestReportFailureRawErrorsKeepsMessage(t *testing.T) {
	failure := &render.Failure{
		Message:      "template broke",
		ParserErrors: raml.ErrorList{badTypeError()},
	}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", RawErrors: true})
	})

	if !strings.Contains(output, "template broke") {
		t.Errorf("Expected the top-level message alongside the raw dump, got: %s", output)
	}

	var jsonLine string
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "[") {
			jsonLine = line
			break
		}
	}
	var decoded []raml.ParserError
	if err := json.Unmarshal([]byte(jsonLine), &decoded); err != nil {
		t.Fatalf("Expected a JSON array after the message, got %q: %v", output, err)
	}
	if len(decoded) != 1 || decoded[0].Code != "E1" {
		t.Errorf("Unexpected raw dump contents: %+v", decoded)
	}
}

func TestReportFailureRawErrorsMessageOnly(t *testing.T) {
	failure := &render.Failure{Message: "template broke"}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", RawErrors: true})
	})

	if !strings.Contains(output, "template broke") {
		t.Errorf("Expected the message to be reported, got: %s", output)
	}
	if !strings.Contains(output, "[]") {
		t.Errorf("Expected an empty JSON array, not null, got: %s", output)
	}
	if strings.Contains(output, "null") {
		t.Errorf("A missing diagnostics collection must not dump as null, got: %s", output)
	}
}

func TestReportFailureHeadlineNamesInput(t *testing.T) {
	failure := &render.Failure{ParserErrors: raml.ErrorList{badTypeError()}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "docs/api.raml"})
	})

	if !strings.Contains(output, "Error parsing docs/api.raml") {
		t.Errorf("Expected the headline to name the input document, got: %s", output)
	}
}

func TestReportFailureRawErrorsPretty(t *testing.T) {
	failure := &render.Failure{ParserErrors: raml.ErrorList{badTypeError()}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", RawErrors: true, PrettyErrors: true})
	})

	if !strings.Contains(output, "\n  ") {
		t.Errorf("Expected indented JSON in pretty raw mode, got: %s", output)
	}
	var decoded []raml.ParserError
	if err := json.Unmarshal([]byte(output), &decoded); err != nil {
		t.Fatalf("Pretty raw dump is not valid JSON: %v", err)
	}
}

func TestReportFailureRawSuppressCombination(t *testing.T) {
	warning := raml.ParserError{Code: "W1", Message: "deprecated", IsWarning: true}
	failure := &render.Failure{ParserErrors: raml.ErrorList{warning, badTypeError()}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", RawErrors: true, SuppressWarnings: true})
	})

	var decoded []raml.ParserError
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &decoded); err != nil {
		t.Fatalf("Expected a JSON array on stderr, got %q: %v", output, err)
	}
	if len(decoded) != 1 || decoded[0].Code != "E1" {
		t.Errorf("Expected only the hard error in the filtered dump, got: %+v", decoded)
	}
}

func TestPrettyErrorsSeparatesDiagnostics(t *testing.T) {
	first := badTypeError()
	second := raml.ParserError{Code: "E2", Message: "also bad"}
	failure := &render.Failure{ParserErrors: raml.ErrorList{first, second}}

	output := captureStderr(t, func() {
		reportFailure(failure, RenderOptions{Input: "api.raml", PrettyErrors: true})
	})

	if !strings.Contains(output, "\n\n") {
		t.Errorf("Expected a blank line between diagnostics, got: %s", output)
	}
}

func TestReportWarningsRespectsSuppression(t *testing.T) {
	warnings := raml.ErrorList{{Code: "W1", Message: "deprecated", IsWarning: true}}

	output := captureStderr(t, func() {
		reportWarnings(warnings, RenderOptions{Input: "api.raml", SuppressWarnings: true})
	})
	if output != "" {
		t.Errorf("Expected no output with --suppress-warnings, got: %s", output)
	}

	output = captureStderr(t, func() {
		reportWarnings(warnings, RenderOptions{Input: "api.raml"})
	})
	if !strings.Contains(output, "W1: deprecated") {
		t.Errorf("Expected the warning to be reported, got: %s", output)
	}
}
