package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrEmptyResponse = errors.New("llm returned no choices")
	ErrMissingSchema = errors.New("output schema not provided")
)

// PromptJSONSchema asks the model for output matching the JSON schema
// reflected from outputSchema and returns the content of the first choice
// undecoded, so a malformed answer can be told apart from a failed request.
func (c *Client) PromptJSONSchema(ctx context.Context, systemPrompt string, prompt string, outputSchema any) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	format, err := schemaFormat(outputSchema)
	if err != nil {
		return "", recordError(span, err)
	}
	if schema, err := json.Marshal(format.JSONSchema.Schema); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schema)))
	}

	response, err := c.complete(ctx, span, completionRequest{
		Model:          c.model,
		Messages:       toMessages(systemPrompt, prompt),
		ResponseFormat: format,
	})
	if err != nil {
		return "", recordError(span, err)
	}

	if response.Usage != nil {
		span.SetAttributes(
			attribute.Int("response.prompt_tokens", response.Usage.PromptTokens),
			attribute.Int("response.completion_tokens", response.Usage.CompletionTokens),
		)
	}
	if len(response.Choices) == 0 {
		return "", recordError(span, ErrEmptyResponse)
	}

	return stripCodeFence(response.Choices[0].Message.Content), nil
}

// schemaFormat builds a strict json_schema response format named after the
// output type. Pointers are followed to their element type.
func schemaFormat(outputSchema any) (*responseFormat, error) {
	outputType := reflect.TypeOf(outputSchema)
	if outputType == nil {
		return nil, ErrMissingSchema
	}
	if outputType.Kind() == reflect.Pointer {
		outputType = outputType.Elem()
	}

	// TODO: Implement a custom reflector that only satisfies the subset of
	// jsonschema used by groq
	reflector := jsonschema.Reflector{DoNotReference: true}
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: &namedSchema{
			Name:   outputType.Name(),
			Schema: *reflector.ReflectFromType(outputType),
			Strict: true,
		},
	}, nil
}

func (c *Client) complete(ctx context.Context, span trace.Span, body completionRequest) (*completionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send completion request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("response.error", string(responseBody)))
		logger.WarnContext(ctx, "structured prompt failed", "status", resp.Status, "model", c.model)
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var completion completionResponse
	if err := json.Unmarshal(responseBody, &completion); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completion response: %w", err)
	}
	return &completion, nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// stripCodeFence returns the body of the first fenced block if the model
// wrapped its answer in one.
func stripCodeFence(content string) string {
	if parts := strings.Split(content, "```"); len(parts) > 2 {
		content = strings.TrimPrefix(parts[1], "json")
	}
	return strings.TrimSpace(content)
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string       `json:"type"`
	JSONSchema *namedSchema `json:"json_schema,omitempty"`
}

type namedSchema struct {
	// Name identifies the schema in the response.
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	// Strict makes the API reject output that does not match Schema.
	Strict bool `json:"strict"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
