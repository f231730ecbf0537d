package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"centavo-service/internal/entities"
)

var httpClient = &http.Client{
	Timeout: 2 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 25,
		IdleConnTimeout:     10 * time.Second,
		DisableCompression:  true,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   true,
	},
}

// Client talks to the wallet gateway's merchant API. The only write it
// performs is redirect-link creation for mobile flows; everything else the
// gateway tells us arrives through the webhook.
type Client struct {
	url    string
	apiKey string
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
	}
}

type redirectLinkRequest struct {
	ReferenceID string `json:"reference_id"`
	Amount      string `json:"amount"`
}

type redirectLinkResponse struct {
	URL string `json:"url"`
}

// CreateRedirectLink asks the gateway for a deep link that opens the payer's
// wallet app preloaded with the exact amount. Callers treat failures as
// non-fatal: the QR payload always works without it.
func (c *Client) CreateRedirectLink(ctx context.Context, sessionID string, amountCentavos int64) (string, error) {
	request := redirectLinkRequest{
		ReferenceID: sessionID,
		Amount:      entities.DisplayAmount(amountCentavos),
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal redirect link request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/redirect-links", c.url), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send redirect link request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var response redirectLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", errors.New("failed to decode redirect link response")
	}
	if response.URL == "" {
		return "", errors.New("gateway returned an empty redirect url")
	}

	return response.URL, nil
}

func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/health", c.url), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
