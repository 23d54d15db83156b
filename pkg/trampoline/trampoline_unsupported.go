//go:build !(windows && amd64)

package trampoline

import (
	"fmt"
	"runtime"
)

// unsupportedCaller stands in for every (OS, ABI) pair this build
// doesn't ship a trampoline for. CallCFunc becomes a fatal trap instead
// of a compile failure, matching spec.md's "cross-ABI trampoline
// behavior is undefined on non-x64 hosts; a port is required."
type unsupportedCaller struct{}

func newPlatformCaller() HostCaller { return unsupportedCaller{} }

func (unsupportedCaller) Call(uint64, [][]byte, uint64) (uint64, error) {
	return 0, fmt.Errorf("host-call trampoline not implemented for %s/%s (only windows/amd64 ships the Microsoft x64 ABI)", runtime.GOOS, runtime.GOARCH)
}
