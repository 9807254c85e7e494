package feed

import (
	"context"
	"net/url"
)

// CredentialsFunc adapts a function to the Credentials interface.
type CredentialsFunc func(ctx context.Context) (string, error)

func (f CredentialsFunc) FeedURL(ctx context.Context) (string, error) { return f(ctx) }

// TokenCredentials builds the feed URL from a base websocket URL plus
// api_key and access_token query parameters.
type TokenCredentials struct {
	BaseURL     string
	APIKey      string
	AccessToken string
}

func (c TokenCredentials) FeedURL(ctx context.Context) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("api_key", c.APIKey)
	q.Set("access_token", c.AccessToken)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
