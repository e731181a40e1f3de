// Package testing switches the process into test mode. Test packages that
// exercise commands or app wiring import it for its side effect.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"

	"github.com/stockflow/stockflow/internal/testing/guard"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		guard.Enable()
		if os.Getenv("CSRF_SECRET") == "" {
			_ = os.Setenv("CSRF_SECRET", "test-csrf-secret")
		}
		if os.Getenv("DATASTORE") == "" {
			_ = os.Setenv("DATASTORE", "memory")
		}
		if os.Getenv("EMAIL_TRANSPORT") == "" {
			_ = os.Setenv("EMAIL_TRANSPORT", "none")
		}
	})
}

func init() {
	ensureTestMode()
}

// Main runs m in test mode. Call it from a package TestMain.
func Main(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
