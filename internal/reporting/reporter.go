// File: internal/reporting/reporter.go

// Package reporting writes session transcripts to files for sharing outside
// the terminal: markdown for humans, JSON for tooling.
package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/miniatlas/atlasctl/api/schemas"
)

// Reporter renders one session transcript to an output.
type Reporter interface {
	// Write renders the transcript.
	Write(sess *schemas.Session) error
	// Close finalizes the report and releases the underlying writer.
	Close() error
}

// nopWriteCloser wraps an io.Writer with a no-op Close, used for stdout.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error { return nil }

// New creates a reporter for the given format. An empty or "stdout" path
// writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdout := outputPath == "" || outputPath == "stdout"
	if isStdout {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch strings.ToLower(format) {
	case "markdown", "md":
		return &markdownReporter{w: writer}, nil
	case "json":
		return &jsonReporter{w: writer}, nil
	default:
		if !isStdout {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// -- JSON --

type jsonReporter struct {
	w io.WriteCloser
}

func (r *jsonReporter) Write(sess *schemas.Session) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sess); err != nil {
		return fmt.Errorf("failed to encode session report: %w", err)
	}
	return nil
}

func (r *jsonReporter) Close() error { return r.w.Close() }

// -- Markdown --

type markdownReporter struct {
	w io.WriteCloser
}

func (r *markdownReporter) Write(sess *schemas.Session) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %s\n\n", sess.SessionID)
	fmt.Fprintf(&b, "- **Status**: %s\n", sess.Status)
	fmt.Fprintf(&b, "- **Start URL**: %s\n", sess.URL)
	if sess.CurrentURL != "" {
		fmt.Fprintf(&b, "- **Final URL**: %s\n", sess.CurrentURL)
	}
	if !sess.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Started**: %s\n", sess.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if sess.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed**: %s\n", sess.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	}

	if len(sess.Goals) > 0 {
		b.WriteString("\n## Goals\n\n")
		for i, goal := range sess.Goals {
			fmt.Fprintf(&b, "%d. %s\n", i+1, goal)
		}
	}

	b.WriteString("\n## Steps\n\n")
	if len(sess.Steps) == 0 {
		b.WriteString("_No steps recorded._\n")
	} else {
		b.WriteString("| # | Action | Target | Result | Error |\n")
		b.WriteString("|---|--------|--------|--------|-------|\n")
		for _, step := range sess.Steps {
			action, target := "", ""
			if step.Action != nil {
				action = string(step.Action.Type)
				target = step.Action.Selector
				if target == "" {
					target = step.Action.URL
				}
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
				step.StepNumber,
				mdCell(action), mdCell(target),
				mdCell(step.Result), mdCell(step.Error),
			)
		}

		// Reasoning is too long for table cells; list it separately.
		var reasoned []schemas.Step
		for _, step := range sess.Steps {
			if step.Reasoning != "" {
				reasoned = append(reasoned, step)
			}
		}
		if len(reasoned) > 0 {
			b.WriteString("\n## Reasoning\n\n")
			for _, step := range reasoned {
				fmt.Fprintf(&b, "**Step %d**: %s\n\n", step.StepNumber, step.Reasoning)
			}
		}
	}

	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

func (r *markdownReporter) Close() error { return r.w.Close() }

// mdCell escapes pipe characters so free text cannot break the table.
func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
