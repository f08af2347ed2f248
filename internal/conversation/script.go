package conversation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Question is one step of the qualification script. The catalog content is
// owned by the studio; this core only cares about ordering and keys.
type Question struct {
	Key    string `yaml:"key"`
	Prompt string `yaml:"prompt"`
}

// Script is the ordered qualification question sequence.
type Script struct {
	questions []Question
}

type scriptFile struct {
	Questions []Question `yaml:"questions"`
}

// LoadScript reads the qualification script from a YAML file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	var file scriptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("script %s has no questions", path)
	}
	for i, q := range file.Questions {
		if q.Key == "" {
			return nil, fmt.Errorf("script %s: question %d has no key", path, i)
		}
	}

	return &Script{questions: file.Questions}, nil
}

// NewScript builds a script from an in-memory question list. Used by tests.
func NewScript(questions []Question) *Script {
	return &Script{questions: questions}
}

// Len returns the number of questions.
func (s *Script) Len() int {
	return len(s.questions)
}

// Question returns the question at a step index.
func (s *Script) Question(step int) (Question, bool) {
	if step < 0 || step >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[step], true
}
