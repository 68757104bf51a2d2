package messenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGraphURL = "https://graph.facebook.com"

// Profile is the public profile of a Messenger user
type Profile struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
}

// Client looks up Messenger user profiles on the Graph API
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// New creates a Graph API client. An empty baseURL uses graph.facebook.com.
func New(baseURL, pageAccessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultGraphURL
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: pageAccessToken,
		http:        &http.Client{Timeout: timeout},
	}
}

// Profile fetches name and picture of a page-scoped user id
func (c *Client) Profile(ctx context.Context, psid string) (Profile, error) {
	values := url.Values{}
	values.Set("fields", "name,profile_pic")
	values.Set("access_token", c.accessToken)
	u := c.baseURL + "/" + url.PathEscape(psid) + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Profile{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile http status %s", resp.Status)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
