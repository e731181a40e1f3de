// Package guard flips STOCKFLOW_TEST_MODE on import so binaries linked into
// a test never start their runtime.
package guard

import (
	"os"
	"sync"
)

// Env is the variable checked by app.InTestMode.
const Env = "STOCKFLOW_TEST_MODE"

var once sync.Once

// Enable sets Env unless it is already set.
func Enable() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}

func init() {
	Enable()
}
