package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/domain"
	"gopkg.in/yaml.v3"
)

// Prompts holds the text templates sent to the vision and generation models.
// Templates use fmt verbs: Describe takes the page number twice, Query takes
// the joined labels, Guidance takes the joined labels and the context block,
// Fallback takes the joined labels, Failure takes the error.
type Prompts struct {
	Describe string `yaml:"describe"`
	Query    string `yaml:"query"`
	Guidance string `yaml:"guidance"`
	Fallback string `yaml:"fallback"`
	Failure  string `yaml:"failure"`
}

const defaultDescribePrompt = `Act as a model-kit assembly expert and analyse this instruction manual image (page %d).
Your first priority is to extract ABSOLUTELY EVERY visible part number in the image, even parts that only appear in the background or are partially covered.

Requirements:
1. Output ONLY a JSON object. No prose, no markdown fences.
2. "parts_list" must contain every visible part number (for example: A11, E13, C11).
3. Describe assembly relationships using only parts from "parts_list".
4. A sprue/sheet code may be a single letter or a letter followed by one digit (for example B1). The part number on that sheet is the white number on a black circle. When both appear, join them with a hyphen exactly like B1-18 and never split them.

Required JSON format:
{
  "page": %d,
  "parts_list": ["A11", "E13", "C11", "B1-18"],
  "summary": "Insert C11 into the slot of A11; E13 covers it as armor.",
  "detail": "[describe the assembly steps shown in the image in detail]"
}`

const defaultQueryPrompt = "Provide the assembly manual steps and instructions that use parts %s."

const defaultGuidancePrompt = `You are a professional model-kit assembly assistant.
Task: using the detected parts and the assembly manual excerpts below, give the user clear, step-by-step assembly guidance.
Detected parts: %s
Assembly manual excerpts (context):
---
%s
---
Answer in natural language. Summarise the assembly order of these parts and their key connection points, and state which manual pages each step appears on.`

const defaultFallbackMessage = "Detected parts %s, but no matching assembly instructions were found. Please check your manual."

const defaultFailureMessage = "Guidance generation failed: %v"

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Describe: defaultDescribePrompt,
		Query:    defaultQueryPrompt,
		Guidance: defaultGuidancePrompt,
		Fallback: defaultFallbackMessage,
		Failure:  defaultFailureMessage,
	}
}

// verbPattern matches one fmt verb with optional flags, width and precision.
var verbPattern = regexp.MustCompile(`%[-+# 0]*[0-9]*(?:\.[0-9]*)?[a-zA-Z]`)

// countVerbs returns the number of fmt verbs in tmpl, ignoring %% escapes.
func countVerbs(tmpl string) int {
	return len(verbPattern.FindAllString(strings.ReplaceAll(tmpl, "%%", ""), -1))
}

// Validate checks that every template takes the arguments its caller passes.
func (p Prompts) Validate() error {
	for _, t := range []struct {
		key   string
		value string
		verbs int
	}{
		{"describe", p.Describe, 2},
		{"query", p.Query, 1},
		{"guidance", p.Guidance, 2},
		{"fallback", p.Fallback, 1},
		{"failure", p.Failure, 1},
	} {
		if n := countVerbs(t.value); n != t.verbs {
			return domain.Wrap(domain.ErrInvalidPrompt,
				fmt.Errorf("%s template has %d format verbs, expected %d", t.key, n, t.verbs))
		}
	}
	return nil
}

// LoadPrompts reads YAML overrides from path. An empty path or a missing file
// returns the defaults; keys absent from the file keep their default. Overrides
// with the wrong number of format verbs are rejected.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prompts, nil
		}
		return prompts, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var overrides Prompts
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return prompts, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	if overrides.Describe != "" {
		prompts.Describe = overrides.Describe
	}
	if overrides.Query != "" {
		prompts.Query = overrides.Query
	}
	if overrides.Guidance != "" {
		prompts.Guidance = overrides.Guidance
	}
	if overrides.Fallback != "" {
		prompts.Fallback = overrides.Fallback
	}
	if overrides.Failure != "" {
		prompts.Failure = overrides.Failure
	}

	if err := prompts.Validate(); err != nil {
		return DefaultPrompts(), err
	}
	return prompts, nil
}
