package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// transmitRequest is the JSON body posted to the external provider.
type transmitRequest struct {
	To      string         `json:"to"`
	Body    string         `json:"body"`
	Options map[string]any `json:"options,omitempty"`
}

// transmitResponse maps the provider's 202 Accepted response body.
type transmitResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// HTTPTransmitter delivers messages by POSTing JSON to a provider REST
// endpoint. Each channel gets its own instance with its own endpoint and
// credential; the endpoint is injected from config so tests can point to
// a local mock server.
type HTTPTransmitter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPTransmitter(endpoint, apiKey string, timeout time.Duration) *HTTPTransmitter {
	return &HTTPTransmitter{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// TransmitRaw posts the body to the provider endpoint and expects a
// 202 Accepted response containing the provider message ID. Non-2xx
// responses become *Error so the retry policy can classify them.
func (t *HTTPTransmitter) TransmitRaw(ctx context.Context, address, body string, options map[string]any) (string, error) {
	payload, err := json.Marshal(transmitRequest{
		To:      address,
		Body:    body,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}

	var tr transmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return tr.MessageID, nil
}

// compile-time check that HTTPTransmitter implements Transmitter
var _ Transmitter = (*HTTPTransmitter)(nil)
