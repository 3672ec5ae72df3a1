package secrets

import (
	"context"
	"errors"
)

// Provider resolves a named secret into its flat key/value form. Production
// runs on the AWS implementation; tests substitute in-memory fakes.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// APICredentials sign outbound requests to the settlement network and the
// broker service. One secret per backend, rotated independently.
type APICredentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// ErrIncompleteCredentials means a secret decoded fine but is missing the
// api_key or api_secret entry.
var ErrIncompleteCredentials = errors.New("secrets: missing api_key or api_secret")

// Credentials extracts the signing pair from a decoded secret. Partial
// material is rejected so a half-rotated secret never reaches a client.
func Credentials(values map[string]string) (APICredentials, error) {
	creds := APICredentials{
		APIKey:    values["api_key"],
		APISecret: values["api_secret"],
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return APICredentials{}, ErrIncompleteCredentials
	}
	return creds, nil
}
