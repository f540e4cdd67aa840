// Package testing flips the application into test mode. Test packages import
// it for its side effect:
//
//	import _ "github.com/signhub/signhub/testing"
package testing

import "os"

func init() {
	_ = os.Setenv("SIGNHUB_TEST_MODE", "1")
}
