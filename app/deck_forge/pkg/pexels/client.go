package pexels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/iWorld-y/deck_forge/app/deck_forge/pkg/search"
)

const baseURL = "https://api.pexels.com/v1/search"

// Client Pexels 图片搜索客户端
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:   apiKey,
		endpoint: baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ search.Searcher = (*Client)(nil)

type searchResponse struct {
	TotalResults int     `json:"total_results"`
	Photos       []photo `json:"photos"`
}

type photo struct {
	ID     int64  `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
	Alt    string `json:"alt"`
	Src    struct {
		Original  string `json:"original"`
		Large     string `json:"large"`
		Landscape string `json:"landscape"`
	} `json:"src"`
}

// Search Pexels 只有图片结果
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	perPage := req.MaxResults
	if perPage <= 0 {
		perPage = 5
	}
	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orientation", "landscape")

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("pexels api error (status %d): %s", res.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	out := &search.Response{}
	for _, p := range sr.Photos {
		src := p.Src.Landscape
		if src == "" {
			src = p.Src.Large
		}
		if src == "" {
			src = p.Src.Original
		}
		out.Images = append(out.Images, search.Image{
			URL:         src,
			Description: p.Alt,
			Width:       p.Width,
			Height:      p.Height,
			Source:      p.URL,
		})
	}
	return out, nil
}
