package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pactpoint/backend/pkg/logger"
)

const classifierPrompt = `You are a strict classifier. Answer with a single word.
Does the following text describe a personal commitment the speaker promises to fulfil?
Answer YES or NO.

Text: %s`

// HTTPClassifier asks an OpenAI-compatible chat completion endpoint whether
// the text is a commitment.
type HTTPClassifier struct {
	client   *http.Client
	endpoint *url.URL
	apiKey   string
	model    string
	log      *logger.Logger
}

// NewHTTPClassifier constructs a classifier for the given endpoint.
func NewHTTPClassifier(client *http.Client, endpoint, apiKey, model string, log *logger.Logger) (*HTTPClassifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse classifier endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("moderation-http")
	}
	return &HTTPClassifier{
		client:   client,
		endpoint: parsed,
		apiKey:   strings.TrimSpace(apiKey),
		model:    model,
		log:      log,
	}, nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(classifierPrompt, text)},
		},
		"temperature": 0,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("encode classifier request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("build classifier request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Verdict{}, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier status %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Verdict{}, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return Verdict{}, fmt.Errorf("classifier returned no choices")
	}

	answer := strings.ToUpper(strings.TrimSpace(payload.Choices[0].Message.Content))
	if strings.HasPrefix(answer, "YES") {
		return Verdict{Commitment: true}, nil
	}
	return Verdict{Reason: "title does not read as a personal commitment"}, nil
}
