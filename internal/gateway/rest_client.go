package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sms-desk/internal/config"
)

// RESTClient talks to the SMS provider's messages endpoint.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	originator string
}

// NewRESTClient builds a client from gateway configuration.
func NewRESTClient(cfg config.GatewayConfig) *RESTClient {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		originator: cfg.Originator,
	}
}

type sendRequest struct {
	Originator string   `json:"originator"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Errors []struct {
		Description string `json:"description"`
	} `json:"errors"`
}

// Send posts one message and returns the provider-assigned id.
func (c *RESTClient) Send(ctx context.Context, to, text string) (string, error) {
	payload, err := json.Marshal(sendRequest{
		Originator: c.originator,
		Recipients: []string{to},
		Body:       text,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "AccessKey "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sendErr := &SendError{StatusCode: resp.StatusCode}
		var errResp errorResponse
		if json.Unmarshal(body, &errResp) == nil && len(errResp.Errors) > 0 {
			sendErr.Description = errResp.Errors[0].Description
		}
		return "", sendErr
	}

	var result sendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	return result.ID, nil
}

// NopSender logs sends instead of delivering them. Used when no API key is
// configured, so local runs never hit the provider.
type NopSender struct {
	logger *zap.Logger
}

// NewNopSender builds the logging stand-in.
func NewNopSender(logger *zap.Logger) *NopSender {
	return &NopSender{logger: logger}
}

// Send logs the would-be delivery and reports success.
func (n *NopSender) Send(_ context.Context, to, text string) (string, error) {
	n.logger.Info("sms send skipped, no gateway configured",
		zap.String("to", to),
		zap.String("body", text))
	return "nop", nil
}
