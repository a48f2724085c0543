package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
)

// RemoteProvider calls a text-generation-inference compatible server
// (POST /generate). Failed calls are reported once, never retried.
type RemoteProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	health     *healthTracker
	logger     *slog.Logger
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	MaxNewTokens      int      `json:"max_new_tokens,omitempty"`
	Temperature       *float32 `json:"temperature,omitempty"`
	TopP              *float32 `json:"top_p,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	DoSample          bool     `json:"do_sample"`
	RepetitionPenalty *float32 `json:"repetition_penalty,omitempty"`
	Seed              *int     `json:"seed,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	ReturnFullText    bool     `json:"return_full_text"`
	NumBeams          int      `json:"num_beams,omitempty"`
	MinLength         int      `json:"min_length,omitempty"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
	Details       *struct {
		GeneratedTokens int `json:"generated_tokens"`
	} `json:"details,omitempty"`
}

// NewRemoteProvider builds a client for the configured endpoint.
func NewRemoteProvider(c config.RemoteConfig) (*RemoteProvider, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("remote endpoint cannot be empty")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	logger := slog.Default().With("component", "RemoteProvider", "endpoint", c.Endpoint)
	return &RemoteProvider{
		baseURL:    strings.TrimRight(c.Endpoint, "/"),
		apiKey:     c.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		health:     newHealthTracker(5, 30*time.Second, logger),
		logger:     logger,
	}, nil
}

func (p *RemoteProvider) Generate(ctx context.Context, prompt ports.Prompt, opts ports.Options) (ports.Completion, error) {
	if prompt.Text == "" {
		return ports.Completion{}, ErrEmptyPrompt
	}
	if p.health.breakerOpen() {
		return ports.Completion{}, fmt.Errorf("%w: circuit breaker is open", ErrBackendUnavailable)
	}

	body, err := json.Marshal(generateRequest{Inputs: prompt.Text, Parameters: parameters(opts, len(prompt.IDs))})
	if err != nil {
		return ports.Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	respBody, err := p.do(ctx, http.MethodPost, "/generate", body)
	if err != nil {
		p.health.recordFailure(err.Error())
		return ports.Completion{}, err
	}

	out, err := decodeGenerateResponse(respBody)
	if err != nil {
		p.health.recordFailure(err.Error())
		return ports.Completion{}, err
	}
	p.health.recordSuccess(time.Since(start))

	c := ports.Completion{
		Text:  out.GeneratedText,
		Raw:   out,
		Usage: &ports.Usage{PromptTokens: len(prompt.IDs)},
	}
	if out.Details != nil {
		c.Usage.CompletionTokens = out.Details.GeneratedTokens
		c.Usage.TotalTokens = c.Usage.PromptTokens + c.Usage.CompletionTokens
	}
	return c, nil
}

// CheckHealth probes GET /health.
func (p *RemoteProvider) CheckHealth(ctx context.Context) error {
	_, err := p.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		p.health.markChecked(false, err.Error())
		return err
	}
	p.health.markChecked(true, "")
	return nil
}

func (p *RemoteProvider) GetHealth() *ModelHealth { return p.health.GetHealth() }

func (p *RemoteProvider) IsHealthy() bool { return p.health.IsHealthy() }

func (p *RemoteProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *RemoteProvider) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	endpoint := p.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %d: %s", method, endpoint, resp.StatusCode, clip(string(respBody), 500))
	}
	return respBody, nil
}

// decodeGenerateResponse accepts both the TGI object form and the list
// form returned by the hosted inference API.
func decodeGenerateResponse(body []byte) (generateResponse, error) {
	var out generateResponse
	if err := validateGenerateResponse(body); err != nil {
		return out, fmt.Errorf("decode response: %w; body: %s", err, clip(string(body), 500))
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []generateResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return out, fmt.Errorf("decode response: %w; body: %s", err, clip(string(body), 500))
		}
		if len(list) == 0 {
			return out, fmt.Errorf("decode response: empty list")
		}
		return list[0], nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("decode response: %w; body: %s", err, clip(string(body), 500))
	}
	return out, nil
}

// parameters maps Options onto the server's knobs. The server rejects
// temperature <= 0 and top_p outside (0, 1), so those are omitted.
func parameters(opts ports.Options, promptLen int) generateParameters {
	p := generateParameters{
		MaxNewTokens: newTokenBudget(opts.MaxNewTokens, opts.MaxLength, promptLen),
		TopK:         opts.TopK,
		DoSample:     opts.DoSample,
		Stop:         opts.Stop,
		NumBeams:     opts.NumBeams,
		MinLength:    opts.MinLength,
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		p.Temperature = &t
	}
	if opts.TopP > 0 && opts.TopP < 1 {
		tp := opts.TopP
		p.TopP = &tp
	}
	if opts.RepetitionPenalty > 0 {
		rp := opts.RepetitionPenalty
		p.RepetitionPenalty = &rp
	}
	if opts.Seed != 0 {
		s := opts.Seed
		p.Seed = &s
	}
	return p
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ports.Generator = (*RemoteProvider)(nil)
