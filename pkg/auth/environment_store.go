package auth

import (
	"os"
	"time"
)

// AccessTokenEnv holds a token for any profile
const AccessTokenEnv = "SECEVENTS_ACCESS_TOKEN"

// EnvironmentStore implements CredentialStore over SECEVENTS_ACCESS_TOKEN.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment token under the requested profile
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	token := os.Getenv(AccessTokenEnv)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if profile == "" {
		profile = DefaultProfile
	}

	return &Credential{
		Profile:      profile,
		AccessToken:  token,
		BaseURL:      os.Getenv("SECEVENTS_BASE_URL"),
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set
func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv(AccessTokenEnv) != ""
}
