package runner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/snapshot"
)

// Status is the outcome of one scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Kind classifies a failure.
type Kind string

const (
	KindNone           Kind = ""
	KindTimeout        Kind = "timeout"
	KindMismatch       Kind = "mismatch"
	KindMissingControl Kind = "missing_control"
	KindOther          Kind = "other"
)

// KindOf maps an error to its failure kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch errs.CodeOf(err) {
	case errs.Timeout:
		return KindTimeout
	case errs.Mismatch:
		return KindMismatch
	case errs.MissingControl:
		return KindMissingControl
	default:
		return KindOther
	}
}

// Result is the outcome of one scenario.
type Result struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Kind      Kind          `json:"kind,omitempty"`
	Step      string        `json:"step,omitempty"`
	Gate      string        `json:"gate,omitempty"`
	Diff      string        `json:"diff,omitempty"`
	Snapshots int           `json:"snapshots"`
	Duration  time.Duration `json:"duration_ns"`
	Err       error         `json:"-"`
}

// Message returns the failure message, or "" for a scenario that did not fail.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report collects the results of one run.
type Report struct {
	Suite            string           `json:"suite"`
	RunID            string           `json:"run_id"`
	Started          time.Time        `json:"started"`
	Duration         time.Duration    `json:"duration_ns"`
	SnapshotLocation string           `json:"snapshot_location,omitempty"`
	Snapshots        snapshot.Summary `json:"snapshots"`
	Results          []Result         `json:"results"`
}

// Count returns how many results have the given status.
func (r *Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the failed results.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// ExitCode is 0 when nothing failed and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.Count(StatusFailed) > 0 {
		return 1
	}
	return 0
}

func (r *Report) totals() string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped", r.Count(StatusPassed), r.Count(StatusFailed), r.Count(StatusSkipped))
}

// Text renders the report for a terminal.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n\n", r.Suite, r.RunID)
	for _, res := range r.Results {
		mark := "ok  "
		switch res.Status {
		case StatusFailed:
			mark = "FAIL"
		case StatusSkipped:
			mark = "skip"
		}
		fmt.Fprintf(&b, "%s %s", mark, res.Name)
		if res.Status != StatusSkipped {
			fmt.Fprintf(&b, " (%s)", res.Duration.Round(time.Millisecond))
		} else if res.Gate != "" {
			fmt.Fprintf(&b, " (gate %s is off)", res.Gate)
		}
		b.WriteByte('\n')
		if res.Status == StatusFailed {
			fmt.Fprintf(&b, "     %s at %q: %s\n", res.Kind, res.Step, res.Message())
			if res.Diff != "" {
				for _, line := range strings.Split(strings.TrimRight(res.Diff, "\n"), "\n") {
					b.WriteString("       ")
					b.WriteString(line)
					b.WriteByte('\n')
				}
			}
		}
	}
	fmt.Fprintf(&b, "\n%s in %s\n", r.totals(), r.Duration.Round(time.Millisecond))
	if r.SnapshotLocation != "" {
		fmt.Fprintf(&b, "snapshots: %s (%s)\n", r.Snapshots, r.SnapshotLocation)
	}
	return b.String()
}

// Markdown renders the report as a Markdown document, suitable for a CI
// job summary.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", r.Suite)
	fmt.Fprintf(&b, "Run `%s`: **%s** in %s.\n\n", r.RunID, r.totals(), r.Duration.Round(time.Millisecond))
	b.WriteString("| Scenario | Status | Kind | Step |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, res := range r.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", mdCell(res.Name), res.Status, res.Kind, mdCell(res.Step))
	}
	for _, res := range r.Failed() {
		fmt.Fprintf(&b, "\n## %s\n\n", res.Name)
		fmt.Fprintf(&b, "Failed at step *%s* (%s):\n\n", res.Step, res.Kind)
		body := res.Message()
		if res.Diff != "" {
			body = res.Diff
		}
		fence := "```"
		if res.Diff != "" {
			fence = "```diff"
		}
		fmt.Fprintf(&b, "%s\n%s\n```\n", fence, strings.TrimRight(body, "\n"))
	}
	if r.SnapshotLocation != "" {
		fmt.Fprintf(&b, "\nSnapshots: %s (`%s`)\n", r.Snapshots, r.SnapshotLocation)
	}
	return b.String()
}

func mdCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 60rem; margin: 2rem auto; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: .25rem .5rem; text-align: left; }
pre { background: #f6f6f6; padding: .5rem; overflow-x: auto; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML renders the Markdown report as a standalone, sanitized page.
func (r *Report) HTML() ([]byte, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(r.Markdown()))
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	body := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))

	var buf bytes.Buffer
	err := reportPage.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{
		Title: r.Suite + " report",
		Body:  template.HTML(body),
	})
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON renders the report for machines.
func (r *Report) JSON() ([]byte, error) {
	type jsonResult struct {
		Result
		Message string `json:"message,omitempty"`
	}
	out := struct {
		*Report
		Results []jsonResult `json:"results"`
	}{Report: r}
	for _, res := range r.Results {
		out.Results = append(out.Results, jsonResult{Result: res, Message: res.Message()})
	}
	return json.MarshalIndent(out, "", "  ")
}
