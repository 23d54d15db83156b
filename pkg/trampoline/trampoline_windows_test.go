//go:build windows && amd64

package trampoline

import (
	"encoding/binary"
	"syscall"
	"testing"
)

func u64Bytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// TestCallFourIntegerArguments exercises the register-only path (all four
// arguments fit in rcx/rdx/r8/r9) by calling back into a Go function
// through syscall.NewCallback, the stdlib's standard way to obtain a
// calling-convention-compatible function pointer without cgo.
func TestCallFourIntegerArguments(t *testing.T) {
	var got [4]uint64
	cb := syscall.NewCallback(func(a, b, c, d uintptr) uintptr {
		got[0], got[1], got[2], got[3] = uint64(a), uint64(b), uint64(c), uint64(d)
		return 99
	})

	caller := newPlatformCaller()
	args := [][]byte{u64Bytes(1), u64Bytes(2), u64Bytes(3), u64Bytes(4)}
	result, err := caller.Call(uint64(cb), args, 8)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != 99 {
		t.Errorf("expected return value 99, got %d", result)
	}
	if got != [4]uint64{1, 2, 3, 4} {
		t.Errorf("expected arguments [1 2 3 4], got %v", got)
	}
}

// TestCallOverflowArguments exercises the stack-pushed path for the fifth
// and sixth arguments, which must land in forward order once the callee
// reads them off its own stack frame.
func TestCallOverflowArguments(t *testing.T) {
	var got [6]uint64
	cb := syscall.NewCallback(func(a, b, c, d, e, f uintptr) uintptr {
		got[0], got[1], got[2], got[3], got[4], got[5] =
			uint64(a), uint64(b), uint64(c), uint64(d), uint64(e), uint64(f)
		return 0
	})

	caller := newPlatformCaller()
	args := [][]byte{
		u64Bytes(10), u64Bytes(20), u64Bytes(30),
		u64Bytes(40), u64Bytes(50), u64Bytes(60),
	}
	if _, err := caller.Call(uint64(cb), args, 8); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	want := [6]uint64{10, 20, 30, 40, 50, 60}
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCallRejectsOversizeArgument(t *testing.T) {
	caller := newPlatformCaller()
	_, err := caller.Call(0, [][]byte{make([]byte, 9)}, 8)
	if err == nil {
		t.Fatal("expected an error for a 9-byte argument")
	}
}

func TestCallRejectsOversizeReturn(t *testing.T) {
	caller := newPlatformCaller()
	_, err := caller.Call(0, nil, 9)
	if err == nil {
		t.Fatal("expected an error for a 9-byte return size")
	}
}

// TestCallSmallerIntegerZeroExtends confirms a narrower argument (e.g. a
// byte) is zero-extended into its 64-bit register slot, matching how the
// interpreter hands the trampoline a raw, possibly sub-word byte slice.
func TestCallSmallerIntegerZeroExtends(t *testing.T) {
	var got uintptr
	cb := syscall.NewCallback(func(a uintptr) uintptr {
		got = a
		return 0
	})
	caller := newPlatformCaller()
	if _, err := caller.Call(uint64(cb), [][]byte{{0xFF}}, 8); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != 0xFF {
		t.Errorf("expected zero-extended 0xFF, got 0x%X", got)
	}
}
