package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// SurveyPlatformClient calls the hosted survey platform's REST API
type SurveyPlatformClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewSurveyPlatformClient creates a new survey platform client
func NewSurveyPlatformClient(baseURL, token string, timeout time.Duration) *SurveyPlatformClient {
	if token == "" {
		log.Warn().Msg("Survey platform token not set")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SurveyPlatformClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
	}
}

// IsConfigured returns true if a platform URL is set
func (c *SurveyPlatformClient) IsConfigured() bool {
	return c.baseURL != ""
}

type setAttributesRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

type showSurveyRequest struct {
	SurveyID string `json:"surveyId"`
}

// SetAttributes attaches personalization attributes to the user on the platform
func (c *SurveyPlatformClient) SetAttributes(ctx context.Context, userID string, attrs map[string]interface{}) error {
	payload, err := json.Marshal(setAttributesRequest{Attributes: attrs})
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPut, "/users/"+url.PathEscape(userID)+"/attributes", payload)
	return err
}

// ShowSurvey asks the platform to display a survey to the user now
func (c *SurveyPlatformClient) ShowSurvey(ctx context.Context, userID, surveyID string) error {
	payload, err := json.Marshal(showSurveyRequest{SurveyID: surveyID})
	if err != nil {
		return fmt.Errorf("failed to encode survey request: %w", err)
	}
	_, err = c.doRequest(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/surveys", payload)
	return err
}

// doRequest performs HTTP request with retry logic on 429 and 5xx
func (c *SurveyPlatformClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	target := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoff
			log.Debug().Str("method", method).Str("path", path).Int("attempt", attempt).Dur("backoff", wait).Msg("Retrying survey platform request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("Survey platform request failed")
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("survey platform error %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("survey platform error %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
