package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hocanet/feedcore/pkg/types"
)

// HTTPClient implements Client against the backend's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   TokenProvider
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL string
	Token   TokenProvider
	Timeout time.Duration // per request, defaults to 15s
	Client  *http.Client  // optional, built from Timeout when nil
}

// NewHTTPClient creates an HTTP transport for the given backend.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{baseURL: cfg.BaseURL, http: hc, token: cfg.Token}, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListComments fetches the full comment list for a post.
func (c *HTTPClient) ListComments(ctx context.Context, postID string) ([]types.Comment, error) {
	var resp types.CommentListResponse
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("list comments for post %s: %s", postID, resp.Error)
	}
	return resp.Data.Comments, nil
}

// CreateComment posts a new comment and returns the server-issued record.
func (c *HTTPClient) CreateComment(ctx context.Context, postID string, req types.CreateCommentRequest) (types.CreatedComment, error) {
	var resp types.CreateCommentResponse
	if err := c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", req, &resp); err != nil {
		return types.CreatedComment{}, err
	}
	if !resp.Success {
		return types.CreatedComment{}, fmt.Errorf("create comment on post %s: %s", postID, resp.Error)
	}
	return resp.Data.Comment, nil
}

// DeleteComment removes a comment on the server.
func (c *HTTPClient) DeleteComment(ctx context.Context, commentID string) error {
	var resp types.StatusResponse
	if err := c.do(ctx, http.MethodDelete, "/comments/"+url.PathEscape(commentID), nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("delete comment %s: %s", commentID, resp.Error)
	}
	return nil
}

// ToggleCommentLike flips the caller's like on a comment.
func (c *HTTPClient) ToggleCommentLike(ctx context.Context, commentID string) error {
	return c.toggle(ctx, "/comments/"+url.PathEscape(commentID)+"/like", "toggle comment like")
}

// TogglePostLike flips the caller's like on a post. The endpoint takes
// no body; the server resolves intent from current state.
func (c *HTTPClient) TogglePostLike(ctx context.Context, postID string) error {
	return c.toggle(ctx, "/posts/"+url.PathEscape(postID)+"/like", "toggle post like")
}

// SavePost bookmarks a post.
func (c *HTTPClient) SavePost(ctx context.Context, postID string) error {
	return c.toggle(ctx, "/posts/"+url.PathEscape(postID)+"/save", "save post")
}

// UnsavePost removes a bookmark.
func (c *HTTPClient) UnsavePost(ctx context.Context, postID string) error {
	var resp types.StatusResponse
	if err := c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID)+"/save", nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("unsave post %s: %s", postID, resp.Error)
	}
	return nil
}

func (c *HTTPClient) toggle(ctx context.Context, path, op string) error {
	var resp types.StatusResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s: %s", op, resp.Error)
	}
	return nil
}
