// Package providers wraps the external services the pipeline calls. Each call
// resolves the user's key through the credential store, is attempted once, and
// fails with an *apperr.Error: CredentialMissing, TransportError or UpstreamError.
package providers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ste11an/facelessflow/internal/apperr"
)

const maxResponseBody = 64 << 20

func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// send issues req once and returns the body of a 2xx response.
func send(client *http.Client, req *http.Request, provider string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Transport(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperr.Transport(provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Upstream(provider, resp.StatusCode, upstreamMessage(body))
	}
	return body, nil
}

func sendJSON(client *http.Client, req *http.Request, provider string, out any) error {
	body, err := send(client, req, provider)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Upstream(provider, http.StatusOK, "unexpected response from "+provider)
	}
	return nil
}

// upstreamMessage pulls a human readable message out of an error body. Providers
// disagree on the field, so the common shapes are tried in turn.
func upstreamMessage(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, field := range []string{"message", "error", "detail"} {
			if msg := messageFrom(obj[field]); msg != "" {
				return msg
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 300 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var nested struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.Message != "" {
			return nested.Message
		}
		return nested.Detail
	}
	return ""
}
