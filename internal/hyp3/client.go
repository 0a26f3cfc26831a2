// Package hyp3 talks to the HyP3 data service: subscription listing,
// product discovery, and concurrent download of product archives.
package hyp3

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Subscription is one standing processing subscription.
type Subscription struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Process string `json:"process_name"`
	Enabled bool   `json:"enabled"`
}

// Product is one finished product available for download.
type Product struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	FlightDirection string `json:"flight_direction"`
	CreationDate    string `json:"creation_date"`
	SizeBytes       int64  `json:"size"`
}

// Client accesses the HyP3 API with username/password credentials.
type Client struct {
	HTTP     *http.Client
	Host     string
	Username string
	Password string
}

// NewClient builds a Client against host.
func NewClient(host, username, password string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Host:     host,
		Username: username,
		Password: password,
	}
}

// Login verifies the configured credentials against the API.
func (c *Client) Login(ctx context.Context) error {
	var out struct {
		Username string `json:"username"`
	}
	if err := c.get(ctx, "/login", nil, &out); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

// Subscriptions lists the account's subscriptions.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var out struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	if err := c.get(ctx, "/subscriptions", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return out.Subscriptions, nil
}

// Products lists the finished products of one subscription.
func (c *Client) Products(ctx context.Context, subscriptionID int) ([]Product, error) {
	params := url.Values{"sub_id": []string{fmt.Sprint(subscriptionID)}}
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, "/products", params, &out); err != nil {
		return nil, fmt.Errorf("failed to list products for subscription %d: %w", subscriptionID, err)
	}
	return out.Products, nil
}

// FindSubscription resolves a subscription by name.
func (c *Client) FindSubscription(ctx context.Context, name string) (*Subscription, error) {
	subs, err := c.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].Name == name {
			return &subs[i], nil
		}
	}
	return nil, fmt.Errorf("no subscription named %q", name)
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("username", c.Username)
	params.Set("password", c.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Host+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
