// Package pinecone queries a Pinecone serverless index over its data-plane REST API.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/imitune/internal/domain"
	"github.com/kailas-cloud/imitune/internal/domain/catalog"
	domsearch "github.com/kailas-cloud/imitune/internal/domain/search"
)

const (
	apiKeyHeader   = "Api-Key"
	metadataURLKey = catalog.FieldFreesoundURL
	maxErrorBody   = 1 << 10
)

// Config holds the index connection settings.
type Config struct {
	APIKey  string
	Host    string // with or without scheme; https:// is assumed
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client implements usecase/search.Index and usecase/ingest.Sink against Pinecone.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Pinecone client. Missing credentials are not an error
// here: every call then fails with domain.ErrIndexNotConfigured.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: normalizeHost(cfg.Host),
		http:    hc,
	}
}

// Configured reports whether both API key and host are set.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

type queryRequest struct {
	TopK            int       `json:"topK"`
	Vector          []float64 `json:"vector"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query returns up to topK nearest neighbors with their metadata URL.
func (c *Client) Query(ctx context.Context, vector []float64, topK int) ([]domsearch.Match, error) {
	var resp queryResponse
	if err := c.post(ctx, "/query", queryRequest{TopK: topK, Vector: vector, IncludeMetadata: true}, &resp); err != nil {
		return nil, err
	}

	matches := make([]domsearch.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		url, _ := m.Metadata[metadataURLKey].(string)
		matches = append(matches, domsearch.Match{ID: m.ID, Score: m.Score, FreesoundURL: url})
	}
	return matches, nil
}

// HealthCheck calls describe_index_stats, which is free and read-only.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.post(ctx, "/describe_index_stats", struct{}{}, nil)
}

type vector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors []vector `json:"vectors"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// Upsert writes sounds as vectors with their freesound_url metadata.
func (c *Client) Upsert(ctx context.Context, sounds []catalog.Sound) error {
	if len(sounds) == 0 {
		return nil
	}
	req := upsertRequest{Vectors: make([]vector, len(sounds))}
	for i := range sounds {
		req.Vectors[i] = vector{ID: sounds[i].ID, Values: sounds[i].Embedding, Metadata: sounds[i].Metadata()}
	}

	var resp upsertResponse
	if err := c.post(ctx, "/vectors/upsert", req, &resp); err != nil {
		return err
	}
	if resp.UpsertedCount != len(sounds) {
		return fmt.Errorf("pinecone upserted %d of %d vectors: %w", resp.UpsertedCount, len(sounds), domain.ErrIndexUnavailable)
	}
	return nil
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// Delete removes vectors by ID. Unknown IDs are ignored by Pinecone.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.post(ctx, "/vectors/delete", deleteRequest{IDs: ids}, nil)
}

type statsResponse struct {
	Dimension        int   `json:"dimension"`
	TotalVectorCount int64 `json:"totalVectorCount"`
}

// Count returns the index's total vector count.
func (c *Client) Count(ctx context.Context) (int64, error) {
	var resp statsResponse
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return 0, err
	}
	return resp.TotalVectorCount, nil
}

// Prepare checks that the existing index holds vectors of dims dimensions.
// Pinecone indexes are created out of band.
func (c *Client) Prepare(ctx context.Context, dims int) error {
	var resp statsResponse
	if err := c.post(ctx, "/describe_index_stats", struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Dimension != 0 && resp.Dimension != dims {
		return fmt.Errorf("pinecone index has dimension %d, dataset has %d", resp.Dimension, dims)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if !c.Configured() {
		return domain.ErrIndexNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s: %w: %w", path, domain.ErrIndexUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("pinecone %s returned %d: %s: %w",
			path, resp.StatusCode, strings.TrimSpace(string(detail)), domain.ErrIndexUnavailable)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode pinecone %s response: %w: %w", path, domain.ErrIndexUnavailable, err)
	}
	return nil
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
