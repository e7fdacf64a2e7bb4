package githubapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"

	"minerva/internal/bootstrap/config"
	"minerva/internal/errs"
)

// NewHTTPClient builds the authenticated transport. GitHub App credentials
// win over a plain token when both are configured.
func NewHTTPClient(ctx context.Context, cfg config.GitHubConfig) (*http.Client, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	if cfg.AppID != 0 && cfg.InstallationID != 0 && cfg.PrivateKeyPath != "" {
		transport, err := ghinstallation.NewKeyFromFile(
			http.DefaultTransport,
			cfg.AppID,
			cfg.InstallationID,
			cfg.PrivateKeyPath,
		)
		if err != nil {
			return nil, errs.Wrap(err, "build github app transport")
		}
		return &http.Client{Transport: transport}, nil
	}

	if cfg.Token != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		return oauth2.NewClient(ctx, source), nil
	}

	return nil, errors.New("github auth is not configured: set github.token or app credentials")
}
