package feedback

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"sync"
	"text/template"

	"github.com/pavelanni/eduquest/internal/model"
)

//go:embed prompts/*.txt
var promptFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// Languages lists the languages feedback can be requested in.
var Languages = []string{"en", "vi"}

// IsSupportedLanguage reports whether a feedback prompt exists for lang.
func IsSupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func loadTemplates() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, lang := range Languages {
			name := "prompts/feedback_" + lang + ".txt"
			content, err := promptFS.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(lang).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			templates[lang] = tmpl
		}
	})
	return loadErr
}

// promptData holds template data for the feedback prompt.
type promptData struct {
	Title         string
	Category      string
	Score         string
	TotalPoints   string
	Percent       string
	Answered      int
	QuestionCount int
	Missed        []string
}

func buildPrompt(lang string, e model.Exam, res model.ExamResult) (string, error) {
	if err := loadTemplates(); err != nil {
		return "", err
	}
	tmpl, ok := templates[lang]
	if !ok {
		return "", fmt.Errorf("no feedback prompt for language %q", lang)
	}

	data := promptData{
		Title:         e.Title,
		Category:      e.Category,
		Score:         formatPoints(res.Score),
		TotalPoints:   formatPoints(res.TotalPoints),
		Percent:       strconv.FormatFloat(res.Percent(), 'f', 1, 64),
		Answered:      res.Answers.Len(),
		QuestionCount: len(e.Questions),
	}
	for _, q := range e.Questions {
		if idx, ok := res.Answers.Get(q.ID); !ok || idx != q.CorrectOptionIndex {
			data.Missed = append(data.Missed, q.Prompt)
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
