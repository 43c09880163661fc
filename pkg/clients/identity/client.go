package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kzich/nudining/internal/config"
)

// ErrUnauthorized indicates the verifier rejected the token.
var ErrUnauthorized = errors.New("token rejected")

// Client verifies opaque identity tokens against the external identity
// provider and returns the trusted uid. The core never inspects tokens
// itself.
type Client interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	verifyURL  string
}

// NewClient builds an identity verifier client from configuration.
func NewClient(cfg config.IdentityConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &APIClient{
		httpClient: restyClient,
		verifyURL:  cfg.VerifyURL,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UID string `json:"uid"`
}

type apiError struct {
	Error string `json:"error"`
}

// VerifyToken submits the token for verification and returns the uid the
// provider vouches for.
func (c *APIClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result := new(verifyResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(verifyRequest{Token: token}).
		SetResult(result).
		SetError(apiErr).
		Post(c.verifyURL)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Error)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return "", fmt.Errorf("identity provider error: code=%d, message=%s", resp.StatusCode(), apiErr.Error)
	}
	if result.UID == "" {
		return "", fmt.Errorf("%w: provider returned no uid", ErrUnauthorized)
	}

	return result.UID, nil
}
