package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/lexiqai/voice-assistant/internal/config"
)

// SynthesisRequest is the text and voice of one synthesis call
type SynthesisRequest struct {
	Text  string
	Model string
}

// Provider streams synthesized audio for a request
type Provider interface {
	Stream(ctx context.Context, req SynthesisRequest) (io.ReadCloser, error)
}

// StatusError is returned when the speech API answers with a non-200 status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speak API returned status %d: %s", e.StatusCode, e.Body)
}

type speakRequest struct {
	Text string `json:"text"`
}

// DeepgramSpeak implements Provider using Deepgram's /v1/speak endpoint
type DeepgramSpeak struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewDeepgramSpeak creates a new Deepgram TTS client
func NewDeepgramSpeak(cfg *config.Config) *DeepgramSpeak {
	apiURL := cfg.DeepgramSpeakURL
	if apiURL == "" {
		apiURL = "https://api.deepgram.com/v1/speak"
	}
	return &DeepgramSpeak{
		apiKey:     cfg.DeepgramAPIKey,
		apiURL:     apiURL,
		httpClient: &http.Client{},
	}
}

func (d *DeepgramSpeak) do(ctx context.Context, req SynthesisRequest, params url.Values) (*http.Response, error) {
	jsonData, err := json.Marshal(speakRequest{Text: req.Text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	params.Set("model", req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL+"?"+params.Encode(), bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Token "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// Stream returns the encoded audio body as it arrives. The caller closes it.
func (d *DeepgramSpeak) Stream(ctx context.Context, req SynthesisRequest) (io.ReadCloser, error) {
	resp, err := d.do(ctx, req, url.Values{})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Save renders req as 16-bit PCM WAV into path, creating parent directories.
// A partial file is removed on failure.
func (d *DeepgramSpeak) Save(ctx context.Context, req SynthesisRequest, path string) error {
	resp, err := d.do(ctx, req, url.Values{
		"encoding":  {"linear16"},
		"container": {"wav"},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}
