// Package cloudtts provides the premium remote TTS backend client. It
// implements the tts.Remote interface against a JSON-over-HTTP
// synthesis API: one POST per utterance, audio returned base64-encoded
// in the response body together with a fallback_required flag that
// tells the orchestration layer whether a local retry is worthwhile.
package cloudtts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nvaldezz/sonara/pkg/provider/tts"
)

const (
	synthesizeEndpoint = "/v1/synthesize"
	defaultTimeout     = 20 * time.Second
)

// Compile-time interface assertion.
var _ tts.Remote = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 20 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Remote backed by the premium synthesis API.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Provider targeting the API at baseURL. Both baseURL and
// apiKey must be non-empty.
func New(baseURL, apiKey string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("cloudtts: baseURL must not be empty")
	}
	if apiKey == "" {
		return nil, errors.New("cloudtts: apiKey must not be empty")
	}
	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is the JSON body sent to POST /v1/synthesize.
type synthesizeRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Pitch   float64 `json:"pitch"`
}

// synthesizeResponse is the JSON body returned by the synthesis API.
type synthesizeResponse struct {
	Success          bool   `json:"success"`
	AudioData        string `json:"audio_data,omitempty"` // base64-encoded
	Error            string `json:"error,omitempty"`
	FallbackRequired bool   `json:"fallback_required,omitempty"`
}

// Synthesize performs one synthesis call. Failures are returned as
// [*tts.RemoteError]; the FallbackAdvisable flag is set when the service
// asked for it explicitly or when the status code indicates a transient
// condition (429 or any 5xx).
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if req.Text == "" {
		return nil, errors.New("cloudtts: text must not be empty")
	}
	if req.VoiceID == "" {
		return nil, errors.New("cloudtts: voice id must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		Speed:   req.Speed,
		Pitch:   req.Pitch,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudtts: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cloudtts: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		// Network-level failures never reached the service; a local retry
		// is the expected recovery.
		return nil, &tts.RemoteError{
			Msg:               fmt.Sprintf("request failed: %v", err),
			FallbackAdvisable: true,
		}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &tts.RemoteError{
			Msg:               fmt.Sprintf("read response: %v", err),
			StatusCode:        httpResp.StatusCode,
			FallbackAdvisable: true,
		}
	}

	var resp synthesizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &tts.RemoteError{
			Msg:               fmt.Sprintf("decode response: %v", err),
			StatusCode:        httpResp.StatusCode,
			FallbackAdvisable: transientStatus(httpResp.StatusCode),
		}
	}

	if httpResp.StatusCode != http.StatusOK || !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("synthesis rejected with status %d", httpResp.StatusCode)
		}
		return nil, &tts.RemoteError{
			Msg:               msg,
			StatusCode:        httpResp.StatusCode,
			FallbackAdvisable: resp.FallbackRequired || transientStatus(httpResp.StatusCode),
		}
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioData)
	if err != nil {
		return nil, &tts.RemoteError{
			Msg:        fmt.Sprintf("decode audio payload: %v", err),
			StatusCode: httpResp.StatusCode,
		}
	}
	if len(audio) == 0 {
		return nil, &tts.RemoteError{
			Msg:               "service returned success with no audio",
			StatusCode:        httpResp.StatusCode,
			FallbackAdvisable: true,
		}
	}

	return &tts.SynthesisResult{Audio: audio}, nil
}

// transientStatus reports whether a status code indicates a condition
// worth retrying on the local backend.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
