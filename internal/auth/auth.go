// Package auth gates relay connections behind an optional token.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken means the token was checked and refused.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the token could not be checked. The relay's
	// fail-open setting decides what happens next.
	ErrUnavailable = errors.New("auth: unavailable")
)

// checkTimeout bounds a call to a remote token service
const checkTimeout = 500 * time.Millisecond

// Validator decides whether a connection's token may use the relay. A nil
// error admits the connection.
type Validator interface {
	Validate(ctx context.Context, token string) error
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token query parameter
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// BearerHeader builds the header a client sends with token
func BearerHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// HTTPValidator asks a remote service about each token. The service gets a
// JSON body {"token": ...} and answers {"valid": bool}; a 401 or 403
// refuses the token outright.
type HTTPValidator struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewHTTPValidator checks tokens against endpoint, sending secret in the
// X-Admin-Secret header when set
func NewHTTPValidator(endpoint, secret string) *HTTPValidator {
	return &HTTPValidator{
		endpoint: endpoint,
		secret:   secret,
		client:   &http.Client{Timeout: checkTimeout},
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("encode token check: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build token check: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Admin-Secret", v.secret)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: token service answered %s", ErrUnavailable, resp.Status)
	}

	var verdict struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&verdict); err != nil {
		return fmt.Errorf("%w: unreadable verdict: %v", ErrUnavailable, err)
	}
	if !verdict.Valid {
		return ErrInvalidToken
	}
	return nil
}

// StaticValidator accepts one shared token. A relay for a few friends
// needs nothing more.
type StaticValidator struct {
	token []byte
}

// NewStaticValidator creates a validator for a shared token
func NewStaticValidator(token string) *StaticValidator {
	return &StaticValidator{token: []byte(token)}
}

func (v *StaticValidator) Validate(_ context.Context, token string) error {
	if token == "" || subtle.ConstantTimeCompare([]byte(token), v.token) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// OpenValidator admits every connection
type OpenValidator struct{}

func (OpenValidator) Validate(context.Context, string) error { return nil }
