package app

import (
	"os"
	"strconv"
)

// TestModeEnv, when true, makes commands skip network side effects.
const TestModeEnv = "STOCKFLOW_TEST_MODE"

// InTestMode reports whether the process runs under tests.
func InTestMode() bool {
	v, ok := os.LookupEnv(TestModeEnv)
	if !ok {
		return false
	}
	on, err := strconv.ParseBool(v)
	return err == nil && on
}
