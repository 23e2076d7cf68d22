package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ctxprobe/pkg/types"
)

// DefaultContext is the context length assumed when the service publishes
// no usable metadata for a model.
const DefaultContext = 2048

// Config holds the client's endpoint and timeouts. It is constructed once
// and injected; there is no package-level endpoint state.
type Config struct {
	// BaseURL of the serving API, e.g. http://localhost:11434.
	BaseURL string
	// RequestTimeout bounds metadata calls (tags, show, ps, version).
	RequestTimeout time.Duration
	// InvokeTimeout bounds inference calls. Loading a large model can take
	// tens of minutes, so this should be generous.
	InvokeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.InvokeTimeout <= 0 {
		c.InvokeTimeout = 20 * time.Minute
	}
	return c
}

// Client talks to an Ollama-compatible serving API. All responses are
// decoded once into typed structs at this boundary.
type Client struct {
	base   string
	meta   *http.Client
	invoke *http.Client
	log    zerolog.Logger
}

// New builds a Client from cfg. The invoke client gets its own transport
// with a header timeout covering the model load phase: the server sends
// nothing until the model is resident, which is exactly the slow part.
func New(cfg Config, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.InvokeTimeout
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		meta: &http.Client{Timeout: cfg.RequestTimeout},
		invoke: &http.Client{
			Transport: transport,
			Timeout:   cfg.InvokeTimeout,
		},
		log: log.With().Str("component", "ollama").Logger(),
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string { return c.base }

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of all installed models.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var payload tagsResponse
	if err := c.getJSON(ctx, "/api/tags", &payload); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

type showResponse struct {
	ModelInfo map[string]json.Number `json:"model_info"`
}

// MaxContext returns the advertised maximum context length for a model.
// Missing or unreadable metadata degrades to DefaultContext, never to an
// error: a model without metadata is still worth probing at the floor.
func (c *Client) MaxContext(ctx context.Context, name string) int {
	body, err := json.Marshal(map[string]string{"model": name})
	if err != nil {
		return DefaultContext
	}
	var payload showResponse
	if err := c.postJSON(ctx, c.meta, "/api/show", body, &payload); err != nil {
		c.log.Warn().Err(err).Str("model", name).Msg("show failed, assuming default context")
		return DefaultContext
	}
	for key, value := range payload.ModelInfo {
		if !strings.HasSuffix(key, ".context_length") {
			continue
		}
		if n, err := value.Int64(); err == nil && n > 0 {
			return int(n)
		}
	}
	c.log.Debug().Str("model", name).Int("default", DefaultContext).Msg("no context_length metadata")
	return DefaultContext
}

type chatResponse struct {
	EvalCount          int    `json:"eval_count"`
	PromptEvalCount    int    `json:"prompt_eval_count"`
	EvalDuration       int64  `json:"eval_duration"`        // ns
	PromptEvalDuration int64  `json:"prompt_eval_duration"` // ns
	LoadDuration       int64  `json:"load_duration"`        // ns
	TotalDuration      int64  `json:"total_duration"`       // ns
	Error              string `json:"error"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
	Messages []chatMessage  `json:"messages,omitempty"`
	Options  map[string]int `json:"options"`
}

// Invoke runs one inference call at the given context size. With loadOnly
// the request carries no messages, so the server loads the model and
// returns without generating; that is all a residency probe needs. Remote
// failure of any kind comes back as Success=false, never as an error.
func (c *Client) Invoke(ctx context.Context, name string, contextSize int, loadOnly bool) types.InvokeResult {
	req := chatRequest{
		Model:  name,
		Stream: false,
		Options: map[string]int{
			"num_ctx":     contextSize,
			"num_predict": 512,
		},
	}
	if !loadOnly {
		req.Messages = []chatMessage{{Role: "user", Content: "What is the capital of France?"}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return types.InvokeResult{}
	}

	start := time.Now()
	var payload chatResponse
	if err := c.postJSON(ctx, c.invoke, "/api/chat", body, &payload); err == nil && payload.Error == "" {
		return invokeMetrics(payload, time.Since(start))
	} else if err != nil {
		c.log.Debug().Err(err).Str("model", name).Int("num_ctx", contextSize).Msg("chat call failed")
	} else {
		c.log.Debug().Str("model", name).Int("num_ctx", contextSize).Str("error", payload.Error).Msg("chat call rejected")
	}

	// Embedding models reject /api/chat outright; fall back to /api/embed
	// so they still count as loadable.
	embed := map[string]string{"model": name}
	if !loadOnly {
		embed["input"] = "test"
	}
	body, err = json.Marshal(embed)
	if err != nil {
		return types.InvokeResult{}
	}
	var embedPayload struct {
		Error string `json:"error"`
	}
	if err := c.postJSON(ctx, c.invoke, "/api/embed", body, &embedPayload); err != nil || embedPayload.Error != "" {
		c.log.Debug().Err(err).Str("model", name).Int("num_ctx", contextSize).Msg("embed fallback failed")
		return types.InvokeResult{}
	}
	return types.InvokeResult{Success: true}
}

func invokeMetrics(resp chatResponse, wall time.Duration) types.InvokeResult {
	total := time.Duration(resp.TotalDuration)
	if total <= 0 {
		total = wall
	}
	out := types.InvokeResult{Success: true, TotalDuration: total}
	if total > 0 && resp.PromptEvalCount+resp.EvalCount > 0 {
		out.TokensPerSecond = float64(resp.PromptEvalCount+resp.EvalCount) / total.Seconds()
	}
	if resp.EvalDuration > 0 && resp.EvalCount > 0 {
		out.DecodeTokensPerSecond = float64(resp.EvalCount) / (time.Duration(resp.EvalDuration)).Seconds()
	}
	return out
}

type psResponse struct {
	Models []struct {
		Model    string `json:"model"`
		Name     string `json:"name"`
		Size     int64  `json:"size"`
		SizeVRAM int64  `json:"size_vram"`
	} `json:"models"`
}

// MemoryFootprint reports the current memory residency of a model, or a
// zero footprint when the model is not resident or the call fails.
func (c *Client) MemoryFootprint(ctx context.Context, name string) types.MemoryFootprint {
	var payload psResponse
	if err := c.getJSON(ctx, "/api/ps", &payload); err != nil {
		c.log.Warn().Err(err).Msg("ps failed")
		return types.MemoryFootprint{}
	}
	for _, m := range payload.Models {
		if m.Model == name || m.Name == name {
			return types.MemoryFootprint{TotalBytes: m.Size, VRAMBytes: m.SizeVRAM}
		}
	}
	c.log.Debug().Str("model", name).Msg("model not in process list")
	return types.MemoryFootprint{}
}

// Version returns the serving software's version string, or "unknown".
func (c *Client) Version(ctx context.Context) string {
	var payload struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/api/version", &payload); err != nil || payload.Version == "" {
		c.log.Warn().Msg("version unavailable")
		return "unknown"
	}
	return payload.Version
}

// Pull downloads (or refreshes) a model on the server.
func (c *Client) Pull(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]any{"model": name, "stream": false})
	if err != nil {
		return err
	}
	var payload struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.postJSON(ctx, c.invoke, "/api/pull", body, &payload); err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	if payload.Error != "" {
		return fmt.Errorf("pull %s: %s", name, payload.Error)
	}
	return nil
}

// Delete removes a model from the server.
func (c *Client) Delete(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"model": name})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.meta.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete %s: %s", name, resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(c.meta, req, out)
}

func (c *Client) postJSON(ctx context.Context, hc *http.Client, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(hc, req, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
