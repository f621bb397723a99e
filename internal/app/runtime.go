package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "SCHOLARIS_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func readTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}

// InTestMode reports whether SCHOLARIS_TEST_MODE=1 was set when first checked.
// The mains consult it before opening pools and sockets.
func InTestMode() bool {
	testModeOnce.Do(readTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the environment, for tests that toggle the flag.
func RefreshTestMode() {
	readTestMode()
}
