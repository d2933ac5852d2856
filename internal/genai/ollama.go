package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/droid-builder/generator-api/internal/project"
)

// DefaultOllamaModel is used when no model is configured for the local backend.
const DefaultOllamaModel = "llama3.1"

// OllamaClient generates projects with a locally running Ollama instance.
// Endpoint discovery follows the standard OLLAMA_HOST environment handling.
type OllamaClient struct {
	client *api.Client
	model  string
	tracer trace.Tracer
}

// NewOllamaClient creates a new Ollama-backed generator.
func NewOllamaClient(model string) (*OllamaClient, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &OllamaClient{
		client: client,
		model:  model,
		tracer: otel.Tracer("genai-ollama-client"),
	}, nil
}

// GenerateProject asks the local model for a JSON file mapping and parses
// it into a FileSet.
func (c *OllamaClient) GenerateProject(ctx context.Context, prompt string) (project.FileSet, error) {
	ctx, span := c.tracer.Start(ctx, "genai.ollama_generate_project")
	defer span.End()

	span.SetAttributes(attribute.String("genai.model", c.model))

	stream := false
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: systemPrompt,
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
	}

	var sb strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ollama generate failed: %w", err)
	}

	fs, err := ParseFileSet(sb.String())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("genai.file_count", len(fs)))
	return fs, nil
}

// CheckModel verifies the configured model is present locally.
func (c *OllamaClient) CheckModel(ctx context.Context) error {
	listResp, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range listResp.Models {
		if model.Name == c.model {
			return nil
		}
	}

	return fmt.Errorf("model '%s' not found - run: ollama pull %s", c.model, c.model)
}
