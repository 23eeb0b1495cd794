package testutil

import (
	"os"
	"testing"
	"time"
)

const healthCheckTimeout = 30 * time.Second

// Setup returns a client against the server named by TEST_SERVER_URL, or
// skips the test when no server is configured. The suite expects a freshly
// migrated and seeded database.
func Setup(t *testing.T) *Client {
	t.Helper()

	serverURL := os.Getenv("TEST_SERVER_URL")
	if serverURL == "" {
		t.Skip("TEST_SERVER_URL not set, skipping integration test")
	}

	client := NewClient(serverURL)
	client.WaitForHealthy(t, healthCheckTimeout)
	return client
}
