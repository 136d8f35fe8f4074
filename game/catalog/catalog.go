package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// DefaultBaseURL is the public Jikan v4 API.
const DefaultBaseURL = "https://api.jikan.moe/v4"

// topAnimePath asks for TV shows ranked by popularity, matching what
// the game frontend expects the candidate pool to be.
const topAnimePath = "/top/anime?type=tv&filter=bypopularity"

// ErrNoCandidates is returned when the catalog responds successfully
// but the candidate list is empty.
var ErrNoCandidates = errors.New("catalog: no candidates")

// Anime is one entry of the catalog's ranking. MalID is the public
// MyAnimeList identifier the clients resolve to a title.
type Anime struct {
	MalID int64 `json:"mal_id"`
}

// Provider yields one randomly chosen anime for a round.
type Provider interface {
	Random(ctx context.Context) (Anime, error)
}

// Client fetches candidates from a Jikan-compatible REST endpoint.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a catalog client for the given base URL. An empty
// baseURL selects the public Jikan API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// topResponse mirrors the relevant slice of Jikan's response schema.
type topResponse struct {
	Data []Anime `json:"data"`
}

// Top returns the catalog's current popularity ranking.
func (c *Client) Top(ctx context.Context) ([]Anime, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+topAnimePath, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch top anime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	var top topResponse
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		return nil, fmt.Errorf("catalog: decode response: %w", err)
	}
	return top.Data, nil
}

// Random fetches the ranking and picks one entry uniformly. It
// returns ErrNoCandidates when the ranking is empty.
func (c *Client) Random(ctx context.Context) (Anime, error) {
	candidates, err := c.Top(ctx)
	if err != nil {
		return Anime{}, err
	}
	if len(candidates) == 0 {
		return Anime{}, ErrNoCandidates
	}
	return candidates[rand.IntN(len(candidates))], nil
}
