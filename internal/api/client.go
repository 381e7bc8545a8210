// Package api speaks the note backend's HTTP protocol: Datalog pulls and
// queries for reads, tagged write actions for mutations. Everything takes
// a context; the tui cancels in-flight calls on shutdown.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rhizome/internal/model"
)

const defaultTimeout = 15 * time.Second

// Client is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New builds a client for the named graph on the hosted backend.
func New(graph, token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: "https://api.roamresearch.com/api/graph/" + graph,
		token:   token,
	}
}

// NewWithBaseURL points the client at an arbitrary endpoint. Tests use it
// against httptest servers; it also covers self-hosted backends.
func NewWithBaseURL(baseURL, token string) *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		token:   token,
	}
}

type pullRequest struct {
	EID      string `json:"eid"`
	Selector string `json:"selector"`
}

type pullResponse struct {
	Result map[string]any `json:"result"`
}

type queryRequest struct {
	Query string `json:"query"`
	Args  []any  `json:"args"`
}

type queryResponse struct {
	Result [][]any `json:"result"`
}

type writeResponse struct {
	UID string `json:"uid"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("api: read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, string(raw))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s response: %w", path, err)
	}
	return nil
}

// Pull fetches an entity by eid with the given selector.
func (c *Client) Pull(ctx context.Context, eid, selector string) (map[string]any, error) {
	var out pullResponse
	if err := c.post(ctx, "/pull", pullRequest{EID: eid, Selector: selector}, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Query runs a Datalog query with positional args.
func (c *Client) Query(ctx context.Context, query string, args ...any) ([][]any, error) {
	var out queryResponse
	if err := c.post(ctx, "/q", queryRequest{Query: query, Args: args}, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Write submits one mutation. For create-block actions the backend
// returns the permanent uid it assigned; other actions return "".
func (c *Client) Write(ctx context.Context, action WriteAction) (string, error) {
	var out writeResponse
	if err := c.post(ctx, "/write", action, &out); err != nil {
		return "", err
	}
	return out.UID, nil
}

// PullPage fetches a page and its whole block tree by uid. A page the
// backend has never seen comes back with no title and no blocks, which
// callers treat as an empty daily note.
func (c *Client) PullPage(ctx context.Context, uid string, date time.Time) (model.Page, error) {
	result, err := c.Pull(ctx, uidEID(uid), pageSelector)
	if err != nil {
		return model.Page{}, err
	}
	return ParsePage(result, uid, date), nil
}

// PullBlockText resolves a single block's text, for rendering ((uid))
// references.
func (c *Client) PullBlockText(ctx context.Context, uid string) (string, error) {
	result, err := c.Pull(ctx, uidEID(uid), blockStringSelector)
	if err != nil {
		return "", err
	}
	text, _ := result[":block/string"].(string)
	return text, nil
}

// PageUIDByTitle looks up a page uid by exact title. Returns ErrNotFound
// if no page has that title.
func (c *Client) PageUIDByTitle(ctx context.Context, title string) (string, error) {
	rows, err := c.Query(ctx, queryPageByTitle, title)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", fmt.Errorf("%w: page %q", ErrNotFound, title)
	}
	uid, ok := rows[0][0].(string)
	if !ok {
		return "", fmt.Errorf("api: unexpected query result for page %q", title)
	}
	return uid, nil
}
