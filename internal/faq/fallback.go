// internal/faq/fallback.go
package faq

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed fallback.yaml
var fallbackYAML []byte

type fallbackFile struct {
	Notes struct {
		MissingKey string `yaml:"missing_key"`
		Error      string `yaml:"error"`
	} `yaml:"notes"`
	Items []struct {
		Question string `yaml:"question"`
		Answer   string `yaml:"answer"`
		Note     bool   `yaml:"note"`
	} `yaml:"items"`
}

type fallbackReason int

const (
	reasonMissingKey fallbackReason = iota
	reasonError
)

func parseFallback(data []byte) (*fallbackFile, error) {
	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fallback faq: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("parse fallback faq: no items")
	}
	return &f, nil
}

// items renders the canned list with the note for reason appended to the
// flagged answers.
func (f *fallbackFile) items(reason fallbackReason) []Item {
	note := f.Notes.Error
	if reason == reasonMissingKey {
		note = f.Notes.MissingKey
	}
	out := make([]Item, 0, len(f.Items))
	for _, it := range f.Items {
		answer := it.Answer
		if it.Note && note != "" {
			answer += " " + note
		}
		out = append(out, Item{Question: it.Question, Answer: answer})
	}
	return out
}
