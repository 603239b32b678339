// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client sends outbound requests to the rendering service.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Authentication headers are not forwarded on redirect.
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

// Do sends req, adding the User-Agent when the caller did not set one.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}
