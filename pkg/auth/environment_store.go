package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and mainly serves CI and container deployments.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	scrapeToken := os.Getenv("REELSCOPE_SCRAPE_TOKEN")
	generationKey := os.Getenv("REELSCOPE_GENERATION_KEY")

	if scrapeToken == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables carry no profile name
	if name == "" {
		name = "default"
	}

	return &Credentials{
		Name:          name,
		ScrapeToken:   scrapeToken,
		GenerationKey: generationKey,
		LastModified:  time.Now(),
	}, nil
}

// List returns a single profile if environment variables are set
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("REELSCOPE_SCRAPE_TOKEN") != ""
}
