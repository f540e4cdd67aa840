package app

import "os"

// TestModeEnv is set by the testing package so binaries built into test runs
// return before opening connections.
const TestModeEnv = "SIGNHUB_TEST_MODE"

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return os.Getenv(TestModeEnv) == "1"
}
