// services/content_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"meme-vote-system/utils"
)

// MemeConcept is what the provider returns for one generation request.
type MemeConcept struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// ContentProvider is the narrow surface the orchestrator needs from the AI
// side. The HTTP client below is the production implementation; tests stub it.
type ContentProvider interface {
	GenerateConcept(ctx context.Context, prompt string) (*MemeConcept, error)
	GenerateImage(ctx context.Context, prompt string) (data []byte, contentType string, err error)
}

type ContentClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewContentClient(baseURL, apiKey string) *ContentClient {
	return &ContentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 30 * time.Second, // a stalled provider call blocks generation until this fires
		},
	}
}

// GenerateConcept calls POST /v1/concepts on the provider.
func (c *ContentClient) GenerateConcept(ctx context.Context, prompt string) (*MemeConcept, error) {
	body, err := c.post(ctx, "/v1/concepts", map[string]interface{}{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	var concept MemeConcept
	if err := json.Unmarshal(body, &concept); err != nil {
		return nil, fmt.Errorf("invalid concept response: %w", err)
	}
	if concept.Title == "" {
		return nil, fmt.Errorf("provider returned empty concept")
	}
	return &concept, nil
}

// GenerateImage calls POST /v1/images. The provider either returns raw image
// bytes or a JSON body with a URL to fetch.
func (c *ContentClient) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	url := c.BaseURL + "/v1/images"

	payload, _ := json.Marshal(map[string]interface{}{"prompt": prompt})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[ContentProvider] /v1/images returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, "", fmt.Errorf("image generation failed: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "image/") {
		return body, contentType, nil
	}

	var indirect struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &indirect); err != nil || indirect.URL == "" {
		return nil, "", fmt.Errorf("provider returned neither image bytes nor a url")
	}
	return c.fetchImage(ctx, indirect.URL)
}

func (c *ContentClient) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := utils.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download failed: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

func (c *ContentClient) post(ctx context.Context, path string, payload map[string]interface{}) ([]byte, error) {
	jsonData, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("[ContentProvider] %s returned %d: %s", path, resp.StatusCode, truncate(string(body), 200))
		return nil, fmt.Errorf("provider call failed: %d", resp.StatusCode)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
