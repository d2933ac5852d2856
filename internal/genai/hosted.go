package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/appforge/droid-builder/generator-api/internal/project"
)

// HostedClient talks to a hosted text-generation service over HTTP.
type HostedClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

// GenerateRequest is the request body for the hosted generate endpoint.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
}

// GenerateResponse is the response body from the hosted generate endpoint.
type GenerateResponse struct {
	Text string `json:"text"`
}

// NewHostedClient creates a client for the hosted model service. Calls run
// behind a circuit breaker so a degraded upstream fails fast instead of
// tying up generation goroutines.
func NewHostedClient(baseURL, model string) *HostedClient {
	settings := gobreaker.Settings{
		Name:        "genai-hosted",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &HostedClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		tracer:  otel.Tracer("genai-hosted-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *HostedClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// GenerateProject sends the prompt to the hosted model and parses the reply
// into a FileSet.
func (c *HostedClient) GenerateProject(ctx context.Context, prompt string) (project.FileSet, error) {
	ctx, span := c.tracer.Start(ctx, "genai.generate_project")
	defer span.End()

	span.SetAttributes(
		attribute.String("genai.model", c.model),
		attribute.Int("genai.prompt_length", len(prompt)),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generateInternal(ctx, prompt)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hosted model call failed: %w", err)
	}

	fs, err := ParseFileSet(result.(string))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("genai.file_count", len(fs)))
	return fs, nil
}

// generateInternal performs the actual HTTP request
func (c *HostedClient) generateInternal(ctx context.Context, prompt string) (string, error) {
	jsonData, err := json.Marshal(GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: systemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("genai service returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return "", fmt.Errorf("genai service returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var genResp GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return genResp.Text, nil
}

// IsHealthy checks if the hosted model service is reachable.
func (c *HostedClient) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "genai.health_check")
	defer span.End()

	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))

	return healthy
}
