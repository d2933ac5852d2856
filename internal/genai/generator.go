package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/appforge/droid-builder/generator-api/internal/project"
)

// Generator produces a project FileSet from a natural-language prompt.
// Implementations are backends for a hosted model API or a local runtime.
type Generator interface {
	GenerateProject(ctx context.Context, prompt string) (project.FileSet, error)
}

// systemPrompt instructs the model to answer with a single JSON object
// mapping relative file paths to file contents, which ParseFileSet expects.
const systemPrompt = `You are an Android project generator. Respond with a single JSON object ` +
	`whose keys are relative file paths (forward slashes, no leading slash, no "..") ` +
	`and whose values are the complete text content of each file. ` +
	`Produce a buildable gradle project. Do not include any prose outside the JSON object.`

// ParseFileSet extracts a path-to-content mapping from raw model output.
// Models wrap JSON in markdown fences or lead with prose more often than
// not, so the parser locates the outermost JSON object before decoding.
func ParseFileSet(raw string) (project.FileSet, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model response")
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model response")
	}

	var files map[string]string
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &files); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("model response contained no files")
	}

	fs := project.FileSet(files)
	if err := fs.Validate(); err != nil {
		return nil, fmt.Errorf("model response: %w", err)
	}
	return fs, nil
}
