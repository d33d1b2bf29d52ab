// Package testing is imported by test packages for its side effects: it
// marks the process as under test and supplies a signing secret so config
// loading succeeds without a real environment.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/odyssey-erp/odyssey-rbac/internal/app"
)

var once sync.Once

func prepareEnv() {
	once.Do(func() {
		_ = os.Setenv(app.TestModeEnv, "true")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "access-test-secret-0123456789abcdef")
		}
		app.RefreshTestMode()
	})
}

func init() {
	prepareEnv()
}

// TestMain prepares the environment for packages that delegate to it.
func TestMain(m *stdtesting.M) {
	prepareEnv()
	os.Exit(m.Run())
}
