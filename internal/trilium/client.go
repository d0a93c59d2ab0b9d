// Package trilium is a client for the Trilium Notes ETAPI. It implements
// the day note and note repositories on top of a running Trilium server.
package trilium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/rs/zerolog"
)

// etapiTimeLayout is the format of utcDateCreated and utcDateModified.
const etapiTimeLayout = "2006-01-02 15:04:05.000Z07:00"

// Client talks to one Trilium server.
type Client struct {
	base   string
	token  string
	http   *http.Client
	logger zerolog.Logger
}

var (
	_ repository.DayNoteRepo = (*Client)(nil)
	_ repository.NoteRepo    = (*Client)(nil)
)

// NewClient creates a client for the server at serverURL (without the
// /etapi suffix). A nil httpClient gets a default with a dial timeout.
func NewClient(serverURL, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		}
	}
	return &Client{
		base:   strings.TrimRight(serverURL, "/") + "/etapi",
		token:  token,
		http:   httpClient,
		logger: logger.With().Str("component", "trilium").Logger(),
	}
}

// etapiNote is the note object returned by ETAPI.
type etapiNote struct {
	NoteID          string   `json:"noteId"`
	Title           string   `json:"title"`
	Type            string   `json:"type"`
	Mime            string   `json:"mime"`
	BlobID          string   `json:"blobId"`
	ParentNoteIDs   []string `json:"parentNoteIds"`
	UTCDateCreated  string   `json:"utcDateCreated"`
	UTCDateModified string   `json:"utcDateModified"`
}

// revision is the optimistic concurrency token of a note. Trilium derives
// blobId from the content, so it changes whenever the content does.
func (n etapiNote) revision() string {
	if n.BlobID != "" {
		return n.BlobID
	}
	return n.UTCDateModified
}

func (n etapiNote) created() time.Time {
	t, err := time.Parse(etapiTimeLayout, n.UTCDateCreated)
	if err != nil {
		return time.Time{}
	}
	return t
}

type etapiAttachment struct {
	AttachmentID    string `json:"attachmentId"`
	OwnerID         string `json:"ownerId"`
	Role            string `json:"role"`
	Mime            string `json:"mime"`
	Title           string `json:"title"`
	Position        int    `json:"position"`
	BlobID          string `json:"blobId"`
	UTCDateModified string `json:"utcDateModified"`
}

type searchResponse struct {
	Results []etapiNote `json:"results"`
}

// request describes one ETAPI call. Body is either raw (with its content
// type) or JSON when JSON is non-nil.
type request struct {
	method      string
	path        string
	query       url.Values
	json        any
	body        []byte
	contentType string
}

func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	start := time.Now()

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.json != nil:
		data, err := json.Marshal(req.json)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case req.body != nil:
		body = bytes.NewReader(req.body)
	}

	endpoint := c.base + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.token)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", httpResp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("etapi request")

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := &APIError{Status: httpResp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}
	return respBody, nil
}

func (c *Client) doJSON(ctx context.Context, req request, out any) error {
	data, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", req.method, req.path, err)
	}
	return nil
}

func (c *Client) getNote(ctx context.Context, noteID string) (*etapiNote, error) {
	var n etapiNote
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/notes/" + url.PathEscape(noteID)}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Client) getContent(ctx context.Context, noteID string) (string, error) {
	data, err := c.do(ctx, request{method: http.MethodGet, path: "/notes/" + url.PathEscape(noteID) + "/content"})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) putContent(ctx context.Context, noteID, content string) error {
	_, err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/notes/" + url.PathEscape(noteID) + "/content",
		body:        []byte(content),
		contentType: "text/plain",
	})
	return err
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]etapiNote, error) {
	q := url.Values{}
	q.Set("search", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp searchResponse
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/notes", query: q}, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// quote renders s as a double-quoted search literal.
func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
