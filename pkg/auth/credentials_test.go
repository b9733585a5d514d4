package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialManager(t *testing.T) {
	// Use mock manager for reliable testing
	manager, mockStore := NewMockManager()

	// Test storing credentials
	cred := &Credential{
		Name:         "default",
		AccessToken:  "MLY|1234567890|abcdef0123456789abcdef0123456789",
		LastModified: time.Now(),
	}

	err := manager.Store(cred)
	if err != nil {
		t.Errorf("Failed to store credential: %v", err)
	}

	// Test retrieving credentials
	retrieved, err := manager.Retrieve("default")
	if err != nil {
		t.Errorf("Failed to retrieve credential: %v", err)
	}

	if retrieved.Name != cred.Name {
		t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, cred.Name)
	}
	if retrieved.AccessToken != cred.AccessToken {
		t.Errorf("AccessToken mismatch: got %s, want %s", retrieved.AccessToken, cred.AccessToken)
	}

	// Test listing credentials
	creds, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list credentials: %v", err)
	}
	if len(creds) == 0 {
		t.Error("Expected at least one credential in list")
	}

	// Test sanitization
	sanitized := SanitizeCredential(cred)
	if sanitized.AccessToken == cred.AccessToken {
		t.Error("AccessToken should be masked")
	}
	if sanitized.Name != cred.Name {
		t.Error("Name should not be masked")
	}

	// Test deletion
	err = manager.Delete("default")
	if err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}

	// Verify deletion
	_, err = manager.Retrieve("default")
	if err == nil {
		t.Error("Expected error retrieving deleted credential")
	}

	// Verify mock store state
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 credentials after deletion, got %d", mockStore.Count())
	}
}

func TestValidTokenFormat(t *testing.T) {
	cases := []struct {
		token string
		want  bool
	}{
		{"MLY|1234567890|abcdef0123456789", true},
		{"MLY|1|2", true},
		{"MLY|1234567890", false},
		{"MLY|", false},
		{"abcdef0123456789", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := ValidTokenFormat(tc.token); got != tc.want {
			t.Errorf("ValidTokenFormat(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "test_creds.enc")

	// Set test passphrase so the store never touches the real config dir
	t.Setenv("TILECOV_PASSPHRASE", "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	cred := &Credential{
		Name:        "research",
		AccessToken: "MLY|9876543210|fedcba9876543210fedcba9876543210",
	}

	// Store
	err = store.Store(cred)
	if err != nil {
		t.Errorf("Failed to store in encrypted file: %v", err)
	}

	// Retrieve
	retrieved, err := store.Retrieve("research")
	if err != nil {
		t.Errorf("Failed to retrieve from encrypted file: %v", err)
	}

	if retrieved.AccessToken != cred.AccessToken {
		t.Errorf("AccessToken mismatch after encryption/decryption")
	}

	// Verify file is actually encrypted
	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}

	// File should not contain the plaintext token
	if contains(fileContent, []byte("MLY|9876543210")) {
		t.Error("File contains plaintext access token")
	}

	// Delete the last credential and verify the file is gone
	if err := store.Delete("research"); err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("Expected credentials file to be removed after last delete")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("MAPILLARY_ACCESS_TOKEN", "MLY|env|token")

	store := NewEnvironmentStore()

	// Test retrieve
	cred, err := store.Retrieve("")
	if err != nil {
		t.Errorf("Failed to retrieve from environment: %v", err)
	}

	if cred.AccessToken != "MLY|env|token" {
		t.Errorf("AccessToken mismatch: got %s, want MLY|env|token", cred.AccessToken)
	}
	if cred.Name != DefaultName {
		t.Errorf("Expected default credential name, got %s", cred.Name)
	}

	// Test that store is not supported
	err = store.Store(&Credential{})
	if err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestEnvironmentStoreAlias(t *testing.T) {
	t.Setenv("MAPILLARY_ACCESS_TOKEN", "")
	t.Setenv("MAPILLARY_TOKEN", "MLY|alias|token")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from alias variable: %v", err)
	}
	if cred.AccessToken != "MLY|alias|token" {
		t.Errorf("Expected alias token, got %s", cred.AccessToken)
	}

	// Canonical variable wins over the alias
	t.Setenv("MAPILLARY_ACCESS_TOKEN", "MLY|canonical|token")
	cred, err = store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve with both variables set: %v", err)
	}
	if cred.AccessToken != "MLY|canonical|token" {
		t.Errorf("Expected canonical token to win, got %s", cred.AccessToken)
	}
}

func TestRealManagerWithEncryptedStore(t *testing.T) {
	tempDir := t.TempDir()

	t.Setenv("TILECOV_PASSPHRASE", "test_passphrase_real_manager")

	// Create manager with only encrypted file store (most reliable for testing)
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(tempDir, "credentials.enc"))
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	manager := NewMockManagerWithStores(encryptedStore)

	cred := &Credential{
		Name:         "default",
		AccessToken:  "MLY|real|0123456789abcdef",
		LastModified: time.Now(),
	}

	err = manager.Store(cred)
	if err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}

	// Test listing credentials
	creds, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list credentials: %v", err)
	}
	if len(creds) != 1 {
		t.Errorf("Expected 1 credential in list, got %d", len(creds))
	}

	// Test retrieving credentials
	retrieved, err := manager.Retrieve("default")
	if err != nil {
		t.Fatalf("Failed to retrieve credential: %v", err)
	}

	if retrieved.Name != cred.Name {
		t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, cred.Name)
	}
	if retrieved.AccessToken != cred.AccessToken {
		t.Errorf("AccessToken mismatch: got %s, want %s", retrieved.AccessToken, cred.AccessToken)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	// Test empty store
	creds, err := store.List()
	if err != nil {
		t.Errorf("Failed to list empty store: %v", err)
	}
	if len(creds) != 0 {
		t.Errorf("Expected 0 credentials, got %d", len(creds))
	}

	// Test storing and retrieving
	cred := &Credential{
		Name:        "mock",
		AccessToken: "MLY|mock|token",
	}

	err = store.Store(cred)
	if err != nil {
		t.Errorf("Failed to store credential: %v", err)
	}

	// Verify count
	if store.Count() != 1 {
		t.Errorf("Expected 1 credential, got %d", store.Count())
	}

	// Test exists
	if !store.Exists("mock") {
		t.Error("Credential should exist")
	}

	// Test error injection
	store.ListError = fmt.Errorf("injected error")
	_, err = store.List()
	if err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func contains(data []byte, substr []byte) bool {
	for i := 0; i <= len(data)-len(substr); i++ {
		if string(data[i:i+len(substr)]) == string(substr) {
			return true
		}
	}
	return false
}
