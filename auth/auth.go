// Package auth exchanges stored or interactively-obtained OAuth2 credentials
// for a bearer token with the Blogger scope.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	blogger "google.golang.org/api/blogger/v3"
)

// Provider turns a client secret plus a cached token file into a refreshing
// token source. The token file is rewritten whenever a new token is minted.
type Provider struct {
	config    *oauth2.Config
	tokenFile string
	logger    *slog.Logger
	prompt    io.Reader // Where the interactive flow reads the auth code from
}

// New builds a Provider from an installed-app client secret file.
func New(credentialsFile, tokenFile string, logger *slog.Logger) (*Provider, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}

	config, err := google.ConfigFromJSON(data, blogger.BloggerScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	return &Provider{
		config:    config,
		tokenFile: tokenFile,
		logger:    logger,
		prompt:    os.Stdin,
	}, nil
}

// TokenSource returns a source that serves the cached token, refreshing it
// transparently when expired. When no usable token exists it falls back to
// the interactive authorization flow and caches the result.
func (p *Provider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := p.tokenFromFile()
	if err != nil {
		p.logger.Info("No cached token, starting interactive authorization", "token_file", p.tokenFile, "reason", err)
		token, err = p.tokenFromFlow(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.saveToken(token); err != nil {
			return nil, err
		}
	}

	// ReuseTokenSource refreshes via the refresh token when the access
	// token expires, keeping the token read-only for the rest of the run.
	source := p.config.TokenSource(ctx, token)

	fresh, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != token.AccessToken {
		p.logger.Info("Access token refreshed", "expiry", fresh.Expiry)
		if err := p.saveToken(fresh); err != nil {
			return nil, err
		}
	}

	return oauth2.ReuseTokenSource(fresh, source), nil
}

func (p *Provider) tokenFromFile() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s holds no token", p.tokenFile)
	}
	return token, nil
}

// tokenFromFlow runs the out-of-band authorization flow: print the consent
// URL and read the resulting code from the prompt reader.
func (p *Provider) tokenFromFlow(ctx context.Context) (*oauth2.Token, error) {
	authURL := p.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%s\n> ", authURL)

	var code string
	scanner := bufio.NewScanner(p.prompt)
	if scanner.Scan() {
		code = scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	if code == "" {
		return nil, errors.New("no authorization code provided")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

func (p *Provider) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(p.tokenFile, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	p.logger.Info("Token cached", "token_file", p.tokenFile)
	return nil
}
