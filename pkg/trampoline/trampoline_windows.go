//go:build windows && amd64

package trampoline

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsCaller implements the Microsoft x64 calling convention: the
// first four integer arguments go in rcx, rdx, r8, r9; the rest are
// pushed right-to-left. It works by synthesizing a short sequence of
// native instructions onto a fresh executable page and calling into it,
// exactly as spec.md's reference algorithm describes.
type windowsCaller struct{}

func newPlatformCaller() HostCaller { return windowsCaller{} }

// minPageSize matches the floor spec.md asks for: "at least 256 bytes".
const minPageSize = 256

func (windowsCaller) Call(fnPtr uint64, args [][]byte, retSize uint64) (uint64, error) {
	if retSize > 8 {
		return 0, fmt.Errorf("return size %d exceeds one machine word", retSize)
	}
	for i, a := range args {
		if len(a) > 8 {
			return 0, fmt.Errorf("argument %d size %d exceeds one machine word", i, len(a))
		}
	}

	code := make([]byte, 0, minPageSize)

	// Arguments are emitted in descending index order so that the first
	// argument is the final emission (and the first thing the callee
	// sees executed); overflow arguments (index >= 4) are pushed in the
	// same descending order, which is why the first overflow argument
	// ends up at the highest stack address once execution runs forward.
	for i := len(args) - 1; i >= 0; i-- {
		value := zeroExtend(args[i])
		switch i {
		case 0:
			// REX.W mov rcx, imm64
			code = append(code, 0x48, 0xB9)
			code = appendU64(code, value)
		case 1:
			// REX.W mov rdx, imm64
			code = append(code, 0x48, 0xBA)
			code = appendU64(code, value)
		case 2:
			// REX.WB mov r8, imm64
			code = append(code, 0x49, 0xB8)
			code = appendU64(code, value)
		case 3:
			// REX.WB mov r9, imm64
			code = append(code, 0x49, 0xB9)
			code = appendU64(code, value)
		default:
			// REX.W mov rax, imm64; push rax
			code = append(code, 0x48, 0xB8)
			code = appendU64(code, value)
			code = append(code, 0x50)
		}
	}

	// REX.W mov rax, fnPtr
	code = append(code, 0x48, 0xB8)
	code = appendU64(code, fnPtr)
	// call rax
	code = append(code, 0xFF, 0xD0)
	// ret
	code = append(code, 0xC3)

	pageSize := uintptr(len(code))
	if pageSize < minPageSize {
		pageSize = minPageSize
	}

	page, err := windows.VirtualAlloc(0, pageSize, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return 0, fmt.Errorf("allocate executable page: %w", err)
	}
	defer windows.VirtualFree(page, 0, windows.MEM_RELEASE)

	dst := unsafe.Slice((*byte)(unsafe.Pointer(page)), len(code))
	copy(dst, code)

	entry := page
	fn := *(*func() uintptr)(unsafe.Pointer(&entry))
	result := fn()

	return uint64(result), nil
}

func zeroExtend(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

func appendU64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}
