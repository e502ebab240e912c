package internal

import (
	"fmt"
	"runtime"
)

// Version is the release of roomchat this binary was built from.
const Version = "0.4.0"

// VersionString describes the binary for `roomchat version` and /healthz.
func VersionString() string {
	return fmt.Sprintf("roomchat %s (%s/%s, %s)", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
