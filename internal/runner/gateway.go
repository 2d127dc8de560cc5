package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/skybit/internal/logger"
	"github.com/aatumaykin/skybit/internal/retry"
	"github.com/aatumaykin/skybit/internal/tasks"
	"github.com/aatumaykin/skybit/internal/version"
)

// maxResponseBytes caps the gateway response body.
const maxResponseBytes = 10 << 20

// GatewayConfig configures a GatewayRunner.
type GatewayConfig struct {
	URL         string
	APIKey      string
	Timeout     time.Duration // per HTTP attempt, zero means no limit
	MaxAttempts int
	Backoff     time.Duration

	// BreakerThreshold consecutive failed runs open the circuit for
	// BreakerCooldown. Zero values select the defaults.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// GatewayRunner runs tasks by posting them to an agent gateway over HTTP.
type GatewayRunner struct {
	client  *http.Client
	config  GatewayConfig
	breaker *Breaker
	logger  *logger.Logger
	now     func() time.Time
}

// StatusError is a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated: 5xx and
// 429 responses are, other client errors are not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type gatewayRequest struct {
	RunID         string             `json:"run_id"`
	TaskID        string             `json:"task_id"`
	Prompt        string             `json:"prompt"`
	SystemPrompt  string             `json:"system_prompt,omitempty"`
	InstanceType  string             `json:"instance_type"`
	ModelProvider string             `json:"model_provider"`
	Tools         []tasks.ToolConfig `json:"tools"`
	Schema        map[string]any     `json:"schema,omitempty"`
}

type gatewayResponse struct {
	Text   string       `json:"text"`
	Output any          `json:"output,omitempty"`
	Steps  []tasks.Step `json:"steps,omitempty"`
}

// NewGatewayRunner creates a runner for cfg. When cfg.URL is empty every
// run fails with ErrGatewayNotConfigured.
func NewGatewayRunner(cfg GatewayConfig, log *logger.Logger) *GatewayRunner {
	if log == nil {
		log = logger.Nop()
	}
	return &GatewayRunner{
		client:  &http.Client{Timeout: cfg.Timeout},
		config:  cfg,
		breaker: NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run posts task to the gateway, retrying transient failures.
func (g *GatewayRunner) Run(ctx context.Context, task tasks.Task) (tasks.RunResult, error) {
	if g.config.URL == "" {
		return tasks.RunResult{}, ErrGatewayNotConfigured
	}

	tools := task.Tools
	if tools == nil {
		tools = []tasks.ToolConfig{}
	}
	body, err := json.Marshal(gatewayRequest{
		RunID:         uuid.NewString(),
		TaskID:        task.ID,
		Prompt:        task.Prompt,
		SystemPrompt:  task.SystemPrompt,
		InstanceType:  task.InstanceType,
		ModelProvider: task.ModelProvider,
		Tools:         tools,
		Schema:        task.Schema,
	})
	if err != nil {
		return tasks.RunResult{}, fmt.Errorf("failed to marshal run request: %w", err)
	}

	if !g.breaker.Allow() {
		return tasks.RunResult{}, ErrGatewayUnavailable
	}

	cfg := retry.Config{MaxAttempts: g.config.MaxAttempts, InitialBackoff: g.config.Backoff}
	resp, err := retry.Do(ctx, cfg, g.logger, func(ctx context.Context) (gatewayResponse, error) {
		return g.doRequest(ctx, body)
	})
	if err != nil {
		g.recordFailure(err)
		return tasks.RunResult{}, err
	}
	g.breaker.RecordSuccess()

	return tasks.RunResult{
		Text:      resp.Text,
		Output:    resp.Output,
		Timestamp: g.now(),
		Steps:     resp.Steps,
	}, nil
}

// recordFailure counts gateway-side failures against the breaker. A
// non-retryable status means the gateway answered, which settles the
// circuit as healthy. Other non-retryable errors, such as cancellation,
// release a pending probe without counting.
func (g *GatewayRunner) recordFailure(err error) {
	if !retry.IsRetryable(err) {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			g.breaker.RecordSuccess()
			return
		}
		g.breaker.Release()
		return
	}
	g.breaker.RecordFailure()
	if g.breaker.State() == CircuitOpen {
		g.logger.Warn("agent gateway circuit open",
			logger.Field{Key: "cooldown", Value: g.breaker.cooldown.String()},
			logger.Field{Key: "trips", Value: g.breaker.Trips()})
	}
}

func (g *GatewayRunner) doRequest(ctx context.Context, body []byte) (gatewayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.URL, bytes.NewReader(body))
	if err != nil {
		return gatewayResponse{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/html;q=0.9")
	req.Header.Set("User-Agent", version.UserAgent())
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gatewayResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 512)}
		g.logger.WarnCtx(ctx, "agent gateway returned error status",
			logger.Field{Key: "status_code", Value: resp.StatusCode})
		return gatewayResponse{}, statusErr
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text, err := htmlToMarkdown(string(respBody))
		if err != nil {
			return gatewayResponse{}, retry.Permanent(err)
		}
		return gatewayResponse{Text: text}, nil
	}

	var out gatewayResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return gatewayResponse{}, retry.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
