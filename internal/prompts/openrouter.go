package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PhucHuwu/Imagine-IV/internal/config"
	"github.com/PhucHuwu/Imagine-IV/internal/run"
	"github.com/PhucHuwu/Imagine-IV/internal/services"
)

const (
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 30 * time.Second
)

const systemPrompt = `You are a prompt writer for an AI image and video generator.

Generate one COMPLETE SET of prompts that are fully consistent with each other:
1. IMAGE PROMPT: describe a single subject in a specific scene, with concrete details about appearance, framing, and environment.
2. VIDEO 1 PROMPT: two movements or actions that exactly match the subject and scene from the image prompt.
3. VIDEO 2 PROMPT: two follow-up movements that continue naturally from video 1 in the same scene.

RULES:
- The scene, subject, and style must stay identical across all three prompts.
- Motions should be smooth, filmable in a six second clip, and described plainly.
- Video 2 must read as the direct continuation of video 1, never a new scene.

OUTPUT FORMAT (JSON):
{
  "image_prompt": "...",
  "video1_prompt": "...",
  "video2_prompt": "..."
}

Only output the JSON, nothing else.`

var styleDirections = []string{
	"golden hour documentary realism",
	"moody neon night photography",
	"soft pastel morning light",
	"high contrast black and white",
	"warm analog film grain",
	"crisp editorial studio lighting",
	"dreamlike long exposure haze",
	"overcast muted color palette",
}

var sceneDirections = []string{
	"a quiet city rooftop at dusk",
	"a rain-soaked street with reflections",
	"a sunlit forest clearing",
	"a minimalist studio with a single backdrop",
	"a windswept coastal cliff",
	"a cluttered artist workshop",
	"an empty train platform at night",
	"a rolling meadow under moving clouds",
}

// Generator produces prompt sets by calling the OpenRouter chat completion
// API. Each call is a single attempt; a failed item is skipped rather than
// retried, so the generator never backs off and reissues a request.
type Generator struct {
	cfg        config.OpenRouter
	httpClient *http.Client

	mu   sync.Mutex
	rand *rand.Rand
	now  func() time.Time
}

// GeneratorOption customizes the generator.
type GeneratorOption func(*Generator)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) GeneratorOption {
	return func(g *Generator) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithRandSource overrides the variation source (useful for tests).
func WithRandSource(source rand.Source) GeneratorOption {
	return func(g *Generator) {
		if source != nil {
			g.rand = rand.New(source)
		}
	}
}

// NewGenerator constructs a generator from the OpenRouter configuration.
func NewGenerator(cfg config.OpenRouter, opts ...GeneratorOption) *Generator {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	gen := &Generator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(gen)
	}
	if strings.TrimSpace(gen.cfg.BaseURL) == "" {
		gen.cfg.BaseURL = defaultBaseURL
	}
	return gen
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Next requests one fresh prompt set from the model.
func (g *Generator) Next(ctx context.Context, mode run.Mode) (Set, error) {
	var empty Set
	if strings.TrimSpace(g.cfg.APIKey) == "" {
		return empty, services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "api key not configured", nil)
	}
	if strings.TrimSpace(g.cfg.Model) == "" {
		return empty, services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "model not configured", nil)
	}

	payload := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: g.userMessage()},
		},
		Temperature:    1.0,
		MaxTokens:      1000,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	content, err := g.sendOnce(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return empty, err
		}
		return empty, services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "request failed", err)
	}

	var set Set
	if err := decodeModelJSON(content, &set); err != nil {
		return empty, services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "unparseable response", err)
	}
	if err := set.Validate(mode); err != nil {
		return empty, services.Wrap(services.ErrPromptGeneration, "prompts", "generate", "incomplete prompt set", err)
	}
	return set, nil
}

// userMessage varies the request so repeated generations do not converge on
// the same scene.
func (g *Generator) userMessage() string {
	g.mu.Lock()
	seed := 1000 + g.rand.Intn(9000)
	style := styleDirections[g.rand.Intn(len(styleDirections))]
	scene := sceneDirections[g.rand.Intn(len(sceneDirections))]
	g.mu.Unlock()

	stamp := g.now().Format("150405")
	return fmt.Sprintf(`Generate a completely NEW and UNIQUE set of prompts.

Random seed: %d-%s
Style direction: %s
Scene: %s

Make this generation different from any previous ones.`, seed, stamp, style, scene)
}

func (g *Generator) sendOnce(ctx context.Context, payload chatRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(g.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")
	if referer := strings.TrimSpace(g.cfg.Referer); referer != "" {
		req.Header.Set("HTTP-Referer", referer)
	}
	if title := strings.TrimSpace(g.cfg.Title); title != "" {
		req.Header.Set("X-Title", title)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, summarizeSnippet(string(body)))
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	choice := completion.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content (finish_reason=%q, refusal=%q)",
			strings.TrimSpace(choice.FinishReason), strings.TrimSpace(choice.Message.Refusal))
	}
	return content, nil
}

// decodeModelJSON tolerates the markdown fences and prose padding models wrap
// around JSON payloads.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizeSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}

var _ Source = (*Generator)(nil)
