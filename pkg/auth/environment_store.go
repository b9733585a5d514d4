package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// MAPILLARY_ACCESS_TOKEN is canonical; MAPILLARY_TOKEN is accepted as an
// alias for compatibility with older deployments.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) token() string {
	if token := os.Getenv("MAPILLARY_ACCESS_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("MAPILLARY_TOKEN")
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets a credential from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	token := e.token()
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables don't carry a name, so fall back to the default
	if name == "" {
		name = DefaultName
	}

	return &Credential{
		Name:         name,
		AccessToken:  token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if environment variables are set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	return e.token() != ""
}
