package decision

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"alpha-arena/pkg/types"
)

// OracleConfig tunes the LLM call shared by every account.
type OracleConfig struct {
	Timeout     time.Duration
	RetryCount  int           // attempts per endpoint
	BackoffBase time.Duration // first retry delay, doubled per attempt
	Temperature float64       // non-reasoning models only
	SSLVerify   bool
}

// Oracle performs the chat-completion call against an account's endpoint
// with per-endpoint retries and multi-endpoint fallback.
type Oracle struct {
	http   *resty.Client
	cfg    OracleConfig
	logger *slog.Logger

	sleep func(time.Duration)
}

// NewOracle creates the caller. With SSLVerify disabled certificate checks
// are skipped for user-supplied endpoints; this is logged once here so the
// choice is visible in every deployment.
func NewOracle(cfg OracleConfig, logger *slog.Logger) *Oracle {
	log := logger.With("component", "oracle")

	httpClient := resty.New().SetTimeout(cfg.Timeout)
	if !cfg.SSLVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		log.Warn("SSL verification disabled for oracle endpoints")
	}

	return &Oracle{
		http:   httpClient,
		cfg:    cfg,
		logger: log,
		sleep:  time.Sleep,
	}
}

const maxReplyTokens = 3000

// reasoningModel reports whether the model belongs to the reasoning class,
// which rejects the temperature parameter and uses max_completion_tokens.
func reasoningModel(model string) bool {
	m := strings.ToLower(model)
	for _, prefix := range []string{"gpt-5", "o1", "o3", "o4"} {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string        `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
}

// buildRequest assembles the chat payload under the model family's
// parameter rules. The o1 family forbids a system role, so the system text
// is folded into the user message there.
func (o *Oracle) buildRequest(model, systemText, userPrompt string) chatRequest {
	req := chatRequest{Model: model}

	if systemText != "" && strings.HasPrefix(strings.ToLower(model), "o1") {
		userPrompt = systemText + "\n\n" + userPrompt
		systemText = ""
	}
	if systemText != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: systemText})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: userPrompt})

	if reasoningModel(model) {
		req.MaxCompletionTokens = maxReplyTokens
		if strings.HasPrefix(strings.ToLower(model), "gpt-5") {
			req.ReasoningEffort = "low"
		}
	} else {
		temp := o.cfg.Temperature
		req.Temperature = &temp
		req.MaxTokens = maxReplyTokens
	}
	return req
}

// Call posts the prompt to the account's endpoints in order and returns the
// assistant text plus any separate reasoning text. Per endpoint it retries
// transport errors and 429 with exponential backoff and jitter; any other
// non-2xx aborts that endpoint and falls through to the next.
func (o *Oracle) Call(ctx context.Context, account types.Account, systemText, userPrompt string) (content, reasoning string, err error) {
	endpoints := chatEndpoints(account.BaseURL)
	if len(endpoints) == 0 {
		return "", "", errors.New("account has no oracle base URL")
	}

	payload := o.buildRequest(account.Model, systemText, userPrompt)

	var lastErr error
	for _, endpoint := range endpoints {
		content, reasoning, lastErr = o.callEndpoint(ctx, endpoint, account, payload)
		if lastErr == nil {
			return content, reasoning, nil
		}
		o.logger.Warn("oracle endpoint failed",
			"account_id", account.ID, "endpoint", endpoint, "error", lastErr)
	}
	return "", "", fmt.Errorf("all oracle endpoints failed: %w", lastErr)
}

func (o *Oracle) callEndpoint(ctx context.Context, endpoint string, account types.Account, payload chatRequest) (string, string, error) {
	var lastErr error
	for attempt := 0; attempt < o.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.BackoffBase << (attempt - 1)
			jitter := time.Duration(rand.Int63n(int64(o.cfg.BackoffBase)))
			o.sleep(backoff + jitter)
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}

		var result chatResponse
		resp, err := o.http.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+account.APIKey).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			SetResult(&result).
			Post(endpoint)
		if err != nil {
			lastErr = fmt.Errorf("transport: %w", err)
			continue
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode() != http.StatusOK {
			return "", "", fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 300))
		}

		if len(result.Choices) == 0 {
			return "", "", errors.New("empty choices in oracle reply")
		}
		choice := result.Choices[0]
		if choice.FinishReason == "length" {
			o.logger.Warn("oracle reply truncated", "account_id", account.ID, "model", account.Model)
		}

		content := choice.Message.Content
		if content == "" && reasoningModel(account.Model) {
			content = choice.Message.Reasoning
		}
		if content == "" {
			return "", "", errors.New("empty assistant content in oracle reply")
		}
		return content, choice.Message.Reasoning, nil
	}
	return "", "", fmt.Errorf("exhausted %d attempts: %w", o.cfg.RetryCount, lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
