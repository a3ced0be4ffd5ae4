// Package litellm implements the contentgen port against a LiteLLM proxy's
// OpenAI-compatible chat completions API.
package litellm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"promptforge/internal/domain/prompt"
	"promptforge/internal/port/contentgen"
	"promptforge/internal/resilience"
)

// Client talks to a LiteLLM proxy. One proxy fronts every provider, so the
// engine stays model-agnostic and the model name is plain configuration.
type Client struct {
	baseURL    string
	masterKey  string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ contentgen.Generator = (*Client)(nil)

// NewClient creates a LiteLLM client for the given proxy URL and model.
func NewClient(baseURL, masterKey, model string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		masterKey: masterKey,
		model:     model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

const analyzeSystem = `You classify prompt engineering requests. Respond with JSON only, no prose:
{"task_types": [...], "behavior_types": [...], "domain": "..."}
task_types from: deduction, induction, abduction, comparison, counterfactual.
behavior_types from: precision, creativity, step_by_step, conciseness, error_checking.
domain from: legal, medical, code, education, or "" when none applies.`

// Analyze asks the model to classify the user prompt into reasoning tasks,
// behaviors, and a domain hint. Unknown labels in the reply are dropped
// rather than propagated.
func (c *Client) Analyze(ctx context.Context, userPrompt string) (*prompt.Analysis, error) {
	reply, err := c.complete(ctx, analyzeSystem, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}

	var parsed struct {
		TaskTypes     []string `json:"task_types"`
		BehaviorTypes []string `json:"behavior_types"`
		Domain        string   `json:"domain"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("analyze: unmarshal reply: %w", err)
	}

	a := &prompt.Analysis{DomainHint: parsed.Domain}
	for _, t := range parsed.TaskTypes {
		if prompt.ValidTaskType(t) {
			a.DetectedTasks = append(a.DetectedTasks, prompt.TaskType(t))
		}
	}
	for _, b := range parsed.BehaviorTypes {
		if prompt.ValidBehaviorType(b) {
			a.DetectedBehaviors = append(a.DetectedBehaviors, prompt.BehaviorType(b))
		}
	}
	return a, nil
}

var generateInstructions = map[prompt.ComponentType]string{
	prompt.ComponentPersona:      "Write a one-sentence persona assignment suited to the request, e.g. 'You are an expert analyst.'",
	prompt.ComponentInstruction:  "Write a clear, direct instruction restating what the user wants done.",
	prompt.ComponentContext:      "Write a short context paragraph with background the model needs for the request.",
	prompt.ComponentExample:      "Write one worked input/output example demonstrating the requested reasoning.",
	prompt.ComponentConstraint:   "Write constraints the response must respect, as short imperative lines.",
	prompt.ComponentOutputFormat: "Write an output format specification for the response.",
}

// Generate writes the text for one selected component type.
func (c *Client) Generate(ctx context.Context, ct prompt.ComponentType, userPrompt string, analysis prompt.Analysis) (string, error) {
	instruction, ok := generateInstructions[ct]
	if !ok {
		return "", fmt.Errorf("generate: unknown component type %q", ct)
	}

	system := "You write individual sections of engineered prompts. " + instruction +
		" Reply with the section text only, no labels or commentary."

	var sb strings.Builder
	sb.WriteString("User request: ")
	sb.WriteString(userPrompt)
	if len(analysis.DetectedTasks) > 0 {
		sb.WriteString("\nReasoning tasks: ")
		sb.WriteString(joinTasks(analysis.DetectedTasks))
	}
	if len(analysis.DetectedBehaviors) > 0 {
		sb.WriteString("\nDesired behaviors: ")
		sb.WriteString(joinBehaviors(analysis.DetectedBehaviors))
	}
	if analysis.DomainHint != "" {
		sb.WriteString("\nDomain: ")
		sb.WriteString(analysis.DomainHint)
	}

	reply, err := c.complete(ctx, system, sb.String())
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", ct, err)
	}
	return strings.TrimSpace(reply), nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	data, err := c.doRequest(ctx, "/chat/completions", body)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) doRequest(ctx context.Context, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if c.masterKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.masterKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

// extractJSON strips surrounding prose or code fences from a model reply,
// returning the outermost JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func joinTasks(tasks []prompt.TaskType) string {
	parts := make([]string, len(tasks))
	for i, t := range tasks {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func joinBehaviors(behaviors []prompt.BehaviorType) string {
	parts := make([]string, len(behaviors))
	for i, b := range behaviors {
		parts[i] = string(b)
	}
	return strings.Join(parts, ", ")
}
