package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Read API poll bounds. The job either resolves within the attempt budget
// or the request fails with OCRTimeoutError.
const (
	ocrPollInterval    = time.Second
	ocrMaxPollAttempts = 10
)

// Read operation states reported by the Azure status endpoint.
type readStatus string

const (
	readNotStarted readStatus = "notStarted"
	readRunning    readStatus = "running"
	readSucceeded  readStatus = "succeeded"
	readFailed     readStatus = "failed"
)

type readResult struct {
	Status        readStatus `json:"status"`
	AnalyzeResult *struct {
		ReadResults []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// azureReadClient drives the Azure Computer Vision Read API: submit the
// image, then poll the returned operation until it resolves.
type azureReadClient struct {
	httpClient   *http.Client
	endpoint     string
	apiKey       string
	pollInterval time.Duration
	maxAttempts  int
}

func newAzureReadClient(endpoint, apiKey string) *azureReadClient {
	return &azureReadClient{
		endpoint:     strings.TrimSuffix(endpoint, "/"),
		apiKey:       apiKey,
		pollInterval: ocrPollInterval,
		maxAttempts:  ocrMaxPollAttempts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// recognizeText runs the full submit/poll cycle and returns the recognized
// lines joined with newlines.
func (c *azureReadClient) recognizeText(ctx context.Context, image []byte) (string, error) {
	operationURL, err := c.submit(ctx, image)
	if err != nil {
		return "", err
	}
	return c.poll(ctx, operationURL)
}

// submit starts a read job and returns the operation URL to poll.
func (c *azureReadClient) submit(ctx context.Context, image []byte) (string, error) {
	analyzeURL := c.endpoint + "/vision/v3.2/read/analyze"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, analyzeURL, bytes.NewReader(image))
	if err != nil {
		return "", &OCRError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &OCRError{Err: fmt.Errorf("submit failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &OCRError{Err: fmt.Errorf("vision API error (status %d): %s", resp.StatusCode, string(body))}
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return "", &OCRError{Err: fmt.Errorf("no Operation-Location header in response")}
	}
	return operationURL, nil
}

// poll checks the operation at a fixed interval until it succeeds, fails,
// or the attempt budget runs out.
func (c *azureReadClient) poll(ctx context.Context, operationURL string) (string, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", &OCRError{Err: ctx.Err()}
		case <-time.After(c.pollInterval):
		}

		result, err := c.fetchResult(ctx, operationURL)
		if err != nil {
			return "", err
		}

		switch result.Status {
		case readSucceeded:
			return collectText(result), nil
		case readFailed:
			return "", &OCRError{Err: fmt.Errorf("read job reported failure")}
		case readNotStarted, readRunning:
			// Keep polling.
		}
	}

	return "", &OCRTimeoutError{Attempts: c.maxAttempts}
}

func (c *azureReadClient) fetchResult(ctx context.Context, operationURL string) (*readResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, &OCRError{Err: fmt.Errorf("failed to create poll request: %w", err)}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &OCRError{Err: fmt.Errorf("poll failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &OCRError{Err: fmt.Errorf("poll returned status %d", resp.StatusCode)}
	}

	var result readResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &OCRError{Err: fmt.Errorf("failed to decode poll response: %w", err)}
	}
	return &result, nil
}

func collectText(result *readResult) string {
	if result.AnalyzeResult == nil {
		return ""
	}

	var builder strings.Builder
	for _, page := range result.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			builder.WriteString(line.Text)
			builder.WriteByte('\n')
		}
	}
	return strings.TrimSpace(builder.String())
}
