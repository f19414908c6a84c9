// Package llm talks to a locally running Ollama-compatible server. voicectl
// never starts or stops that server; it only detects it and optionally
// pre-loads a model so the first real request doesn't pay the load cost.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "dolphin3:latest"
	DefaultKeepAlive = "30m"

	// ModelEnvVar overrides the configured model at runtime.
	ModelEnvVar = "VOICECTL_LLM_MODEL"

	warmupPrompt = "hello"

	// Loading a large model from disk can take a while.
	warmupTimeout = 2 * time.Minute
)

type Client struct {
	httpClient *http.Client
	BaseURL    string
	Model      string
	KeepAlive  string
}

func NewClient(baseURL, model, keepAlive string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if keepAlive == "" {
		keepAlive = DefaultKeepAlive
	}
	return &Client{
		httpClient: &http.Client{Timeout: warmupTimeout},
		BaseURL:    baseURL,
		Model:      model,
		KeepAlive:  keepAlive,
	}
}

type generateRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	Stream    bool   `json:"stream"`
	KeepAlive string `json:"keep_alive"`
}

// ResolveModel returns the model the warm-up will target, with the
// environment override taking precedence over configuration.
func (c *Client) ResolveModel() string {
	if m := os.Getenv(ModelEnvVar); m != "" {
		return m
	}
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

// Warmup issues one blocking generation request so the model is resident in
// memory before real traffic arrives. The keep_alive directive tells the
// server how long to keep it there. Callers treat a failed warm-up as a
// degraded start, not a fatal one.
func (c *Client) Warmup(ctx context.Context) error {
	model := c.ResolveModel()
	log.Info().Str("model", model).Str("keep_alive", c.KeepAlive).Msg("warming up model")

	payload, err := json.Marshal(generateRequest{
		Model:     model,
		Prompt:    warmupPrompt,
		Stream:    false,
		KeepAlive: c.KeepAlive,
	})
	if err != nil {
		return errors.Wrap(err, "marshal warmup request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create warmup request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send warmup request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("warmup returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	log.Info().Str("model", model).Msg("model is warm")
	return nil
}

func (c *Client) generateURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/generate"
}
