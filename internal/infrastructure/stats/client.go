package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Client talks to the hit-statistics service over HTTP. It records one hit
// per public event view and answers aggregated unique-view queries.
type Client struct {
	baseURL string
	app     string
	http    *http.Client
}

func New(baseURL, app string) *Client {
	return &Client{
		baseURL: baseURL,
		app:     app,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type hitBody struct {
	App       string `json:"app"`
	URI       string `json:"uri"`
	IP        string `json:"ip"`
	Timestamp string `json:"timestamp"`
}

type statsRow struct {
	App  string `json:"app"`
	URI  string `json:"uri"`
	Hits int64  `json:"hits"`
}

func (c *Client) RecordHit(ctx context.Context, uri, ip string) error {
	body, err := json.Marshal(hitBody{
		App:       c.app,
		URI:       uri,
		IP:        ip,
		Timestamp: time.Now().UTC().Format(timeLayout),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/hit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stats hit: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) Views(ctx context.Context, start, end time.Time, uris []string, unique bool) (map[string]int64, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(timeLayout))
	q.Set("end", end.UTC().Format(timeLayout))
	for _, u := range uris {
		q.Add("uris", u)
	}
	q.Set("unique", strconv.FormatBool(unique))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats query: unexpected status %d", resp.StatusCode)
	}

	var rows []statsRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.URI] = row.Hits
	}
	return out, nil
}
