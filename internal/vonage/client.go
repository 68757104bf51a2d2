package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the application-scoped bearer token for API calls
type TokenSource interface {
	AdminToken() (string, error)
}

// APIError is returned for any non-2xx response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Error %s %s %s", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is a thin wrapper over the conversation API.
type Client struct {
	baseURL *url.URL
	tokens  TokenSource
	http    *http.Client
	log     *slog.Logger
}

// New creates a conversation API client.
func New(rawURL string, tokens TokenSource, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return &Client{
		baseURL: parsed,
		tokens:  tokens,
		http: &http.Client{
			Timeout: timeout,
		},
		log: slog.Default().With("component", "csClient"),
	}, nil
}

// GetConversation fetches a conversation by id
func (c *Client) GetConversation(ctx context.Context, cid string) (Conversation, error) {
	var conv Conversation
	err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(cid), nil, &conv)
	return conv, err
}

// ListConversations returns one page of conversations as the API sent it. query may carry
// page_size, order and cursor.
func (c *Client) ListConversations(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.list(ctx, "/conversations", query)
}

// DeleteConversation deletes a conversation
func (c *Client) DeleteConversation(ctx context.Context, cid string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(cid), nil, nil)
}

// ListMembers lists the members of a conversation
func (c *Client) ListMembers(ctx context.Context, cid string) ([]Member, error) {
	var list memberList
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(cid)+"/members", nil, &list); err != nil {
		return nil, err
	}
	return list.Embedded.Members, nil
}

// CreateMember adds a member to a conversation and returns its id
func (c *Client) CreateMember(ctx context.Context, cid string, req MemberRequest) (string, error) {
	var created Member
	if err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(cid)+"/members", req, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// SendEvent posts an event to a conversation
func (c *Client) SendEvent(ctx context.Context, cid string, event Event) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(cid)+"/events", event, nil)
}

// GetUser fetches a user by id or name
func (c *Client) GetUser(ctx context.Context, idOrName string) (User, error) {
	var user User
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(idOrName), nil, &user)
	return user, err
}

// FindUserByName returns the users whose name matches exactly
func (c *Client) FindUserByName(ctx context.Context, name string) ([]User, error) {
	var list userList
	if err := c.do(ctx, http.MethodGet, "/users?name="+url.QueryEscape(name), nil, &list); err != nil {
		return nil, err
	}
	return list.Embedded.Users, nil
}

// ListUsers returns one page of users as the API sent it
func (c *Client) ListUsers(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.list(ctx, "/users", query)
}

// CreateUser creates a user and returns it with its id
func (c *Client) CreateUser(ctx context.Context, user User) (User, error) {
	var created User
	err := c.do(ctx, http.MethodPost, "/users", user, &created)
	return created, err
}

// UpdateUser patches name and display name of a user
func (c *Client) UpdateUser(ctx context.Context, id string, user User) error {
	return c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(id), user, nil)
}

// DeleteUser deletes a user
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) list(ctx context.Context, p string, query url.Values) (json.RawMessage, error) {
	if len(query) > 0 {
		p += "?" + query.Encode()
	}
	var page json.RawMessage
	if err := c.do(ctx, http.MethodGet, p, nil, &page); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, method, p string, body, out interface{}) error {
	c.log.Debug("request", "method", method, "path", p)

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(p), reader)
	if err != nil {
		return err
	}
	if err := c.decorate(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: p, StatusCode: resp.StatusCode, Status: resp.Status}
		c.log.Error(apiErr.Error())
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	return nil
}

// resolve joins the base URL and p; path segments in p are already escaped
func (c *Client) resolve(p string) string {
	return c.BaseURL() + p
}

func (c *Client) decorate(req *http.Request) error {
	token, err := c.tokens.AdminToken()
	if err != nil {
		return fmt.Errorf("admin token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return nil
}

// BaseURL returns the configured API URL without trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.baseURL.String(), "/")
}
