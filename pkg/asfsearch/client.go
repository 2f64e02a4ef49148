// Package asfsearch queries the ASF search APIs for granule metadata. It
// covers the two lookups the processing workflows need: metadata for known
// granules and the temporal stack behind a reference granule.
package asfsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultSearchAPI is ASF's param search endpoint.
	DefaultSearchAPI = "https://api.daac.asf.alaska.edu/services/search/param"
	// DefaultBaselineAPI is ASF's baseline stack endpoint.
	DefaultBaselineAPI = "https://api.daac.asf.alaska.edu/services/search/baseline"
)

const defaultMaxNeighbors = 2

// Sentinel errors for search failures.
var (
	// ErrSearch marks a request the API rejected.
	ErrSearch = errors.New("asf search error")
	// ErrGranuleNotFound marks a granule the API has no record of.
	ErrGranuleNotFound = errors.New("granule not found")
)

// Product is one result of a jsonlite search. METADATA_* product types are
// filtered out before results reach callers.
type Product struct {
	GranuleName           string  `json:"granuleName"`
	ProductID             string  `json:"productID"`
	ProductType           string  `json:"productType"`
	DownloadURL           string  `json:"downloadUrl"`
	SizeMB                float64 `json:"sizeMB"`
	StartTime             string  `json:"startTime"`
	TemporalBaseline      int     `json:"temporalBaseline"`
	PerpendicularBaseline float64 `json:"perpendicularBaseline"`
}

// Client talks to the ASF search APIs.
type Client struct {
	searchURL   string
	baselineURL string
	httpClient  *http.Client
}

// Config configures a search Client. Zero values select the public ASF
// endpoints and a 30s timeout.
type Config struct {
	SearchURL   string
	BaselineURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// NewClient creates a search client.
func NewClient(cfg Config) *Client {
	c := &Client{
		searchURL:   cfg.SearchURL,
		baselineURL: cfg.BaselineURL,
		httpClient:  cfg.HTTPClient,
	}
	if c.searchURL == "" {
		c.searchURL = DefaultSearchAPI
	}
	if c.baselineURL == "" {
		c.baselineURL = DefaultBaselineAPI
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c
}

// GetMetadata looks up metadata for the given granules, in no guaranteed
// order. Granules the archive has no product for are simply absent from the
// result.
func (c *Client) GetMetadata(ctx context.Context, granules ...string) ([]Product, error) {
	if len(granules) == 0 {
		return nil, fmt.Errorf("%w: no granules given", ErrSearch)
	}

	params := url.Values{
		"output":       {"jsonlite"},
		"granule_list": {strings.Join(granules, ",")},
	}
	results, err := c.query(ctx, http.MethodPost, c.searchURL, params)
	if err != nil {
		return nil, err
	}
	return withoutMetadataProducts(results), nil
}

// GetNearestNeighbors returns up to maxNeighbors granules from the reference
// granule's temporal stack, backwards in time, nearest first. maxNeighbors
// values below one mean the default of 2.
func (c *Client) GetNearestNeighbors(ctx context.Context, granule string, maxNeighbors int) ([]Product, error) {
	if maxNeighbors < 1 {
		maxNeighbors = defaultMaxNeighbors
	}

	params := url.Values{
		"output": {"jsonlite"},
		"master": {granule},
	}
	stack, err := c.query(ctx, http.MethodGet, c.baselineURL, params)
	if err != nil {
		return nil, err
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGranuleNotFound, granule)
	}

	// Neighbors are the part of the stack acquired before the reference:
	// negative temporal baseline, closest to zero first.
	neighbors := make([]Product, 0, len(stack))
	for _, p := range stack {
		if p.TemporalBaseline < 0 {
			neighbors = append(neighbors, p)
		}
	}
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].TemporalBaseline > neighbors[j].TemporalBaseline
	})

	if len(neighbors) > maxNeighbors {
		neighbors = neighbors[:maxNeighbors]
	}
	return neighbors, nil
}

func (c *Client) query(ctx context.Context, method, rawURL string, params url.Values) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, searchError(resp)
	}

	var body struct {
		Results []Product `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return body.Results, nil
}

// searchError surfaces the API's error report for 4xx responses; anything
// else just carries the status.
func searchError(resp *http.Response) error {
	if resp.StatusCode >= 400 && resp.StatusCode <= 499 {
		var body struct {
			Error struct {
				Report string `json:"report"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error.Report != "" {
			return fmt.Errorf("%w: %s", ErrSearch, body.Error.Report)
		}
	}
	return fmt.Errorf("%w: unexpected status %d", ErrSearch, resp.StatusCode)
}

func withoutMetadataProducts(results []Product) []Product {
	kept := make([]Product, 0, len(results))
	for _, p := range results {
		if strings.HasPrefix(p.ProductType, "METADATA_") {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}
