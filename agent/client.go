package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/andydunstall/converge/gossip"
)

// Client queries the status endpoints of a node's agent server.
type Client struct {
	httpClient *http.Client

	url *url.URL
}

func NewClient(urlStr string) (*Client, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("parse url: %s: %w", urlStr, err)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
		url: u,
	}, nil
}

func (c *Client) StoreStatus() (StoreStatus, error) {
	var status StoreStatus
	if err := c.request("/status/store", &status); err != nil {
		return StoreStatus{}, err
	}
	return status, nil
}

func (c *Client) GossipStatus() (gossip.Status, error) {
	var status gossip.Status
	if err := c.request("/status/gossip", &status); err != nil {
		return gossip.Status{}, err
	}
	return status, nil
}

func (c *Client) request(path string, out interface{}) error {
	u := *c.url
	u.Path = path

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request: bad status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
