// file: internal/credentials/clientcredentials.go
// version: 1.0.0
// guid: d1afcee9-851f-43c6-8e90-bcc4b187fb50

package credentials

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials exchanges a client id and secret for a bearer token using
// the OAuth2 client-credentials grant.
type ClientCredentials struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentials creates an exchanger for tokenURL.
func NewClientCredentials(clientID, clientSecret, tokenURL string, timeout time.Duration) *ClientCredentials {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ClientCredentials{
		config: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Exchange performs one token request.
func (c *ClientCredentials) Exchange(ctx context.Context) (string, time.Duration, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	start := time.Now()
	tok, err := c.config.Token(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	// Expiry is derived from expires_in at receipt.
	lifetime := time.Hour
	if !tok.Expiry.IsZero() {
		lifetime = tok.Expiry.Sub(start).Round(time.Second)
	}
	return tok.AccessToken, lifetime, nil
}
