//go:build integration
// +build integration

package scripts

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScriptsIntegration(t *testing.T) {
	if os.Getenv("RUN_SCRIPTS_TESTS") == "" {
		t.Skip("skipping integration test; set RUN_SCRIPTS_TESTS=1 to run")
	}

	t.Run("SmokeSessions", func(t *testing.T) {
		RunSmokeSessions(filepath.Join(t.TempDir(), "smoke.db"))
	})
}
