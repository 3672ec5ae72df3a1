package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/httpclient"
)

// Identity is the resolved caller identity: the exchange user id and the
// account id on the settlement network (zero when unregistered).
type Identity struct {
	UserID    int64 `json:"user_id"`
	NetworkID int64 `json:"network_id"`
}

// Verifier resolves an optional caller identity from a bearer credential.
// A missing or empty token is not an error; anonymous quoting is permitted.
type Verifier interface {
	Verify(ctx context.Context, bearerToken, ip string) (*Identity, error)
}

// HTTPVerifier introspects bearer tokens against the auth service.
type HTTPVerifier struct {
	verifyURL string
	exec      *httpclient.Executor
	logger    *zap.Logger
}

func NewHTTPVerifier(logger *zap.Logger, verifyURL string, exec *httpclient.Executor) *HTTPVerifier {
	return &HTTPVerifier{
		verifyURL: verifyURL,
		exec:      exec,
		logger:    logger,
	}
}

// Verify resolves the identity behind bearerToken. Returns (nil, nil) for an
// empty token; an invalid or expired token is an error.
func (v *HTTPVerifier) Verify(ctx context.Context, bearerToken, ip string) (*Identity, error) {
	if bearerToken == "" {
		return nil, nil
	}
	bearerToken = strings.TrimPrefix(bearerToken, "Bearer ")

	req, err := httpclient.NewJSONRequest(ctx, http.MethodGet, v.verifyURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	var identity Identity
	if err := v.exec.DoJSON(ctx, req, "auth", &identity); err != nil {
		return nil, fmt.Errorf("bearer verification failed: %w", err)
	}
	if identity.UserID == 0 {
		return nil, fmt.Errorf("bearer verification returned no identity")
	}
	return &identity, nil
}
