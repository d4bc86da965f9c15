// Package index maintains a search index of object metadata in an
// Elasticsearch-compatible engine. The Client speaks the small slice of
// the REST API the application needs (index creation, bulk ingest,
// search passthrough); the Indexer feeds it from a background worker
// pool so request handlers never block on the search engine.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wsio/wsio/internal/errs"
)

// DefaultIndex is the index name used when none is configured.
const DefaultIndex = "wsio-objects"

// Document is one indexed object.
type Document struct {
	Path        string    `json:"path"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	Node        string    `json:"node"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Modified    time.Time `json:"modified"`
}

// ID is the document identifier: the logical path is unique per object.
func (d Document) ID() string {
	return d.Path
}

const mapping = `{
  "mappings": {
    "properties": {
      "path":         {"type": "keyword"},
      "bucket":       {"type": "keyword"},
      "key":          {"type": "text"},
      "node":         {"type": "keyword"},
      "size":         {"type": "long"},
      "content_type": {"type": "keyword"},
      "modified":     {"type": "date"}
    }
  }
}`

// Client is a minimal search engine client. Requests rotate across the
// configured node URIs.
type Client struct {
	nodes []string
	index string
	http  *http.Client

	next atomic.Uint64
}

// NewClient creates a Client for the given node URIs. index may be empty
// to use DefaultIndex.
func NewClient(nodes []string, index string) (*Client, error) {
	if len(nodes) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "at least one search node URI is required")
	}
	if index == "" {
		index = DefaultIndex
	}
	trimmed := make([]string, len(nodes))
	for i, n := range nodes {
		trimmed[i] = strings.TrimRight(n, "/")
	}
	return &Client{
		nodes: trimmed,
		index: index,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) node() string {
	return c.nodes[c.next.Add(1)%uint64(len(c.nodes))]
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.node()+path, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to build search request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "search engine unreachable", err)
	}
	return resp, nil
}

func drainBody(resp *http.Response) string {
	defer resp.Body.Close()
	buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(buf)
}

// Ping checks that the search engine answers.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", "", nil)
	if err != nil {
		return err
	}
	if body := drainBody(resp); resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.ErrKindConnectionFailed, "search engine ping returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// EnsureIndex creates the object index with its mapping. An index that
// already exists is not an error.
func (c *Client) EnsureIndex(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPut, "/"+c.index, "application/json", strings.NewReader(mapping))
	if err != nil {
		return err
	}
	body := drainBody(resp)
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(body, "resource_already_exists_exception") {
		return nil
	}
	return errs.Newf(errs.ErrKindQueryFailed, "failed to create index %s: %d %s", c.index, resp.StatusCode, body)
}

// Bulk indexes documents in one _bulk call.
func (c *Client) Bulk(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		action := map[string]any{"index": map[string]string{"_index": c.index, "_id": doc.ID()}}
		if err := enc.Encode(action); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode bulk action", err)
		}
		if err := enc.Encode(doc); err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, "failed to encode document", err)
		}
	}

	resp, err := c.do(ctx, http.MethodPost, "/_bulk", "application/x-ndjson", &buf)
	if err != nil {
		return err
	}
	body := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return errs.Newf(errs.ErrKindQueryFailed, "bulk index returned %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.Unmarshal([]byte(body), &result); err == nil && result.Errors {
		return errs.New(errs.ErrKindQueryFailed, "bulk index reported item failures")
	}
	return nil
}

// Delete removes one document by logical path. The id is escaped so its
// slashes stay inside the _doc segment.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/"+c.index+"/_doc/"+url.PathEscape(path), "", nil)
	if err != nil {
		return err
	}
	body := drainBody(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return errs.Newf(errs.ErrKindQueryFailed, "delete returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// Search forwards an engine-native query body and returns the raw
// response. Authorization and result shaping happen in the caller.
func (c *Client) Search(ctx context.Context, query json.RawMessage) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, "/"+c.index+"/_search", "application/json", bytes.NewReader(query))
	if err != nil {
		return nil, err
	}
	body := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.ErrKindQueryFailed, "search returned %d: %s", resp.StatusCode, body)
	}
	return json.RawMessage(body), nil
}
