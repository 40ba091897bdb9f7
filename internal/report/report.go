// Package report renders a finished run for the user in text, JSON, or
// YAML form. The rendered report is the tool's stdout payload; logs go
// to stderr.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"commit-message-refiner/internal/run"
)

//go:embed report_template.md
var reportTemplateText string

var reportTemplate *template.Template

func init() {
	reportTemplate = template.Must(
		template.New("report").Funcs(templateFuncs()).Parse(reportTemplateText),
	)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": formatDate,
		"inc":        func(i int) int { return i + 1 },
		"indentBody": indentBody,
	}
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// indentBody aligns multi-line suggested messages under their label
func indentBody(message string) string {
	return strings.ReplaceAll(message, "\n", "\n               ")
}

// Metadata describes the run for the report header
type Metadata struct {
	Provider         string    `json:"provider" yaml:"provider"`
	ModelID          string    `json:"model_id" yaml:"model_id"`
	GenerationTime   time.Time `json:"generated_at" yaml:"generated_at"`
	CoherenceApplied bool      `json:"coherence_applied" yaml:"coherence_applied"`
}

// CommitEntry is one commit's row in the rendered report
type CommitEntry struct {
	SHA       string `json:"commit" yaml:"commit"`
	ShortSHA  string `json:"short_sha" yaml:"short_sha"`
	Author    string `json:"author" yaml:"author"`
	PRNumber  int    `json:"pr_number,omitempty" yaml:"pr_number,omitempty"`
	Original  string `json:"original" yaml:"original"`
	Suggested string `json:"suggested,omitempty" yaml:"suggested,omitempty"`
	Category  string `json:"category,omitempty" yaml:"category,omitempty"`
	Attempts  int    `json:"attempts" yaml:"attempts"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Document is the full serializable report
type Document struct {
	Metadata     Metadata      `json:"metadata" yaml:"metadata"`
	TotalCommits int           `json:"total_commits" yaml:"total_commits"`
	Improved     int           `json:"improved" yaml:"improved"`
	Failed       int           `json:"failed" yaml:"failed"`
	Commits      []CommitEntry `json:"commits" yaml:"commits"`
}

// templateData flattens Document for the text template
type templateData struct {
	Provider         string
	ModelID          string
	GenerationTime   time.Time
	CoherenceApplied bool
	TotalCommits     int
	Improved         int
	Failed           int
	Commits          []CommitEntry
}

// Build assembles the serializable document from a finished run, in
// commit input order.
func Build(rep run.Report, md Metadata) Document {
	doc := Document{
		Metadata:     md,
		TotalCommits: len(rep.Outcomes),
		Commits:      make([]CommitEntry, 0, len(rep.Outcomes)),
	}

	for _, o := range rep.Outcomes {
		entry := CommitEntry{
			SHA:      o.Commit.SHA,
			ShortSHA: o.Commit.ShortSHA,
			Author:   o.Commit.Author,
			PRNumber: o.Commit.PRNumber,
			Original: o.Commit.Subject,
			Attempts: o.Attempts,
		}

		switch {
		case o.Suggestion != nil:
			entry.Suggested = o.Suggestion.Message
			entry.Category = o.Suggestion.Category
			doc.Improved++
		case o.Err != nil:
			entry.Error = o.Err.Error()
			doc.Failed++
		default:
			entry.Error = "no suggestion returned"
			doc.Failed++
		}

		doc.Commits = append(doc.Commits, entry)
	}

	return doc
}

// Render writes the report in the requested format: "text" (default),
// "json", or "yaml".
func Render(w io.Writer, format string, rep run.Report, md Metadata) error {
	doc := Build(rep, md)

	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, doc)
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(doc)
	default:
		return fmt.Errorf("unknown output format %q (expected text, json, or yaml)", format)
	}
}

func renderText(w io.Writer, doc Document) error {
	data := templateData{
		Provider:         doc.Metadata.Provider,
		ModelID:          doc.Metadata.ModelID,
		GenerationTime:   doc.Metadata.GenerationTime,
		CoherenceApplied: doc.Metadata.CoherenceApplied,
		TotalCommits:     doc.TotalCommits,
		Improved:         doc.Improved,
		Failed:           doc.Failed,
		Commits:          doc.Commits,
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute report template: %w", err)
	}
	return nil
}
