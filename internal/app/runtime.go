package app

import (
	"os"
	"sync"
)

// testModeEnv short-circuits process startup under the e2e harness so
// main functions return instead of binding ports or dialing services.
const testModeEnv = "LEDGERLINE_TEST_MODE"

var (
	testModeOnce sync.Once
	testMode     bool
)

// InTestMode reports whether startup side effects should be skipped.
// The environment is read once; set the variable before the first call.
func InTestMode() bool {
	testModeOnce.Do(func() {
		testMode = os.Getenv(testModeEnv) == "1"
	})
	return testMode
}
