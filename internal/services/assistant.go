package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "gpt-oss"

	livenessTTL     = 30 * time.Second
	livenessTimeout = 3 * time.Second
)

// OllamaAssistant implements [Assistant] against an Ollama server.
//
// Liveness is checked with GET /api/tags and cached for 30 seconds; concurrent checks
// share one request.
type OllamaAssistant struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *log.Logger
	now     func() time.Time
	group   singleflight.Group

	mu        sync.Mutex
	checkedAt time.Time
	alive     bool
	models    []string
}

// NewOllamaAssistant creates an assistant for the server at baseURL.
func NewOllamaAssistant(baseURL, model string, logger *log.Logger) *OllamaAssistant {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OllamaAssistant{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
		logger:  logger,
		now:     time.Now,
	}
}

// Model returns the configured model name.
func (a *OllamaAssistant) Model() string {
	return a.model
}

func (a *OllamaAssistant) cached() (alive, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checkedAt.IsZero() || a.now().Sub(a.checkedAt) >= livenessTTL {
		return false, false
	}
	return a.alive, true
}

// Available reports whether the server answered a check within the last 30 seconds.
func (a *OllamaAssistant) Available(ctx context.Context) bool {
	if alive, ok := a.cached(); ok {
		return alive
	}

	v, _, _ := a.group.Do("available", func() (any, error) {
		return a.ping(ctx), nil
	})
	return v.(bool)
}

func (a *OllamaAssistant) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()

	alive := false
	var models []string

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/tags", nil)
	if err == nil {
		var resp *http.Response
		if resp, err = a.client.Do(req); err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				alive = true
				for _, name := range gjson.GetBytes(body, "models.#.name").Array() {
					models = append(models, name.String())
				}
			}
		}
	}
	if err != nil {
		a.logger.Debug("assistant check failed", "url", a.baseURL, "error", err)
	}

	a.mu.Lock()
	a.alive = alive
	a.models = models
	a.checkedAt = a.now()
	a.mu.Unlock()
	return alive
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Generate sends prompt to /api/generate without streaming and returns the trimmed
// "response" field.
func (a *OllamaAssistant) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(generateRequest{Model: a.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAssistantUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", shared.ErrAssistantUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", shared.ErrAssistantUnavailable, resp.StatusCode)
	}

	return strings.TrimSpace(gjson.GetBytes(body, "response").String()), nil
}

// Status checks the server and lists up to three installed models.
func (a *OllamaAssistant) Status(ctx context.Context) AssistantStatus {
	status := AssistantStatus{
		Available: a.Available(ctx),
		URL:       a.baseURL,
		Model:     a.model,
	}

	a.mu.Lock()
	status.Models = append([]string(nil), a.models[:min(3, len(a.models))]...)
	status.Installed = lo.ContainsBy(a.models, func(name string) bool {
		base, _, _ := strings.Cut(name, ":")
		return name == a.model || base == a.model
	})
	a.mu.Unlock()
	return status
}
