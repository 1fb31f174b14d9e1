// Package prompts renders the model prompts for each mentor type and for
// the judge and summarization calls.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tbourn/go-mentor-backend/internal/domain"
)

//go:embed templates/*.tmpl
var files embed.FS

var tmpl = template.Must(template.ParseFS(files, "templates/*.tmpl"))

// Passage is a retrieved lesson excerpt.
type Passage struct {
	Text string
	Page *int
}

// Line is one transcript entry.
type Line struct {
	Role    domain.Role
	Content string
}

// SystemData feeds the mentor system prompt.
type SystemData struct {
	MentorName           string
	Instructions         string
	CompletionConditions string
	Language             string
	Passages             []Passage
}

// JudgeData feeds the judge prompt.
type JudgeData struct {
	MentorType           domain.MentorType
	CompletionConditions string
	Transcript           []Line
}

// SummaryData feeds the summarization prompt.
type SummaryData struct {
	Previous   string
	Transcript []Line
}

// System renders the system prompt for a mentor type.
func System(t domain.MentorType, d SystemData) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("unknown mentor type %q", t)
	}
	if d.MentorName == "" {
		d.MentorName = "the mentor"
	}
	return render(string(t), d)
}

// Judge renders the evaluation prompt.
func Judge(d JudgeData) (string, error) {
	if d.MentorType == "" {
		d.MentorType = domain.MentorTypeMentor
	}
	return render("judge", d)
}

// Summary renders the history compaction prompt.
func Summary(d SummaryData) (string, error) {
	return render("summary", d)
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
