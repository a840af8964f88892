package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBrowseURL = "https://api.nasa.gov/neo/rest/v1/neo/browse"

// Fetcher retrieves raw catalog data from the NeoWs browse endpoint.
// Hardened fetching (rate limiting, retries, paging through the full
// catalog) belongs to an upstream collaborator; this client does one GET.
type Fetcher struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. An empty baseURL selects the public NeoWs
// browse endpoint; an empty apiKey falls back to NASA's DEMO_KEY.
func NewFetcher(baseURL, apiKey string, pageSize int) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBrowseURL
	}
	if apiKey == "" {
		apiKey = "DEMO_KEY"
	}
	if pageSize <= 0 || pageSize > 20 {
		pageSize = 20 // NeoWs browse page limit
	}
	return &Fetcher{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SourceURL returns the configured endpoint without credentials.
func (f *Fetcher) SourceURL() string {
	return f.baseURL
}

// Fetch performs an HTTP GET and returns the raw response body.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing source URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", f.apiKey)
	q.Set("size", fmt.Sprintf("%d", f.pageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.baseURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return body, nil
}

// browsePayload is the envelope of the NeoWs browse response.
type browsePayload struct {
	NearEarthObjects []RawEntry `json:"near_earth_objects"`
}

// DecodeBrowse extracts the raw object entries from a browse response body.
func DecodeBrowse(data []byte) ([]RawEntry, error) {
	var payload browsePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decoding catalog payload: %w", err)
	}
	if len(payload.NearEarthObjects) == 0 {
		return nil, fmt.Errorf("catalog payload contains no objects")
	}
	return payload.NearEarthObjects, nil
}
