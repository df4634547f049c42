package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cast"

	coreerrors "github.com/milan604/restfetch/pkg/errors"
	fhttp "github.com/milan604/restfetch/pkg/http"
)

// OAuth2ClientCredentialsProvider implements TokenProvider for the OAuth2
// client credentials grant.
type OAuth2ClientCredentialsProvider struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Client       fhttp.Doer
}

// NewOAuth2ClientCredentialsProvider creates a new OAuth2 client credentials token provider.
func NewOAuth2ClientCredentialsProvider(tokenURL, clientID, clientSecret, scope string) *OAuth2ClientCredentialsProvider {
	return &OAuth2ClientCredentialsProvider{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
		Client:       fhttp.NewClient(fhttp.WithTimeout(10 * time.Second)),
	}
}

// FetchToken retrieves a token using OAuth2 client credentials flow.
func (p *OAuth2ClientCredentialsProvider) FetchToken(ctx context.Context) (string, time.Time, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", p.ClientID)
	data.Set("client_secret", p.ClientSecret)
	if p.Scope != "" {
		data.Set("scope", p.Scope)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	header.Set("Accept", "application/json")

	client := p.Client
	if client == nil {
		client = fhttp.NewClient()
	}
	resp, err := client.Do(ctx, &fhttp.Request{
		Method: http.MethodPost,
		URL:    p.TokenURL,
		Header: header,
		Body:   data.Encode(),
	})
	if err != nil {
		return "", time.Time{}, coreerrors.Wrap(err, "token request failed")
	}

	fields, ok := resp.Data.(map[string]any)
	if !ok {
		return "", time.Time{}, coreerrors.New("token response is not a JSON object")
	}
	token := cast.ToString(fields["access_token"])
	if token == "" {
		return "", time.Time{}, coreerrors.New("empty access token in response")
	}

	expiresIn := cast.ToInt(fields["expires_in"])
	expiresAt := time.Now()
	if expiresIn > 0 {
		// 10s safety margin
		expiresAt = expiresAt.Add(time.Duration(expiresIn-10) * time.Second)
	} else {
		expiresAt = expiresAt.Add(time.Hour)
	}
	return token, expiresAt, nil
}

// StaticTokenProvider provides a static token that never expires.
type StaticTokenProvider struct {
	Token string
}

// NewStaticTokenProvider creates a new static token provider.
func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{Token: token}
}

// FetchToken returns the static token with a far-future expiration.
func (p *StaticTokenProvider) FetchToken(ctx context.Context) (string, time.Time, error) {
	return p.Token, time.Now().Add(24 * 365 * time.Hour), nil
}

// CustomTokenProvider allows you to provide a custom function for fetching tokens.
type CustomTokenProvider struct {
	FetchFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)
}

// NewCustomTokenProvider creates a new custom token provider.
func NewCustomTokenProvider(fetchFunc func(ctx context.Context) (string, time.Time, error)) *CustomTokenProvider {
	return &CustomTokenProvider{FetchFunc: fetchFunc}
}

// FetchToken calls the custom fetch function.
func (p *CustomTokenProvider) FetchToken(ctx context.Context) (string, time.Time, error) {
	if p.FetchFunc == nil {
		return "", time.Time{}, fmt.Errorf("fetch function is nil")
	}
	return p.FetchFunc(ctx)
}
