package vm

import "unsafe"

// This file is the VM's entire unsafe core. OpStore and OpLoad need to
// turn raw address bytes sitting on the VM's byte stack into real memory
// accesses, and get-stack-top / get-stack-bottom need the stack's own
// address; everything outside this file treats the stack as plain []byte.
// OpCallCFunc hands its function pointer to the trampoline as a plain
// uint64.

// addressOf returns the address of b's first byte as a VM-stack-width
// integer. Used for get-stack-top / get-stack-bottom.
func addressOf(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&b[0])))
}

// readMemory reads size bytes starting at addr. addr may point into the
// VM's own stack or into arbitrary host memory; the VM does not know or
// care which.
func readMemory(addr uint64, size uint64) []byte {
	if size == 0 {
		return nil
	}
	p := (*byte)(unsafe.Pointer(uintptr(addr)))
	return unsafe.Slice(p, size)
}

// writeMemory copies data to addr.
func writeMemory(addr uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	p := (*byte)(unsafe.Pointer(uintptr(addr)))
	dst := unsafe.Slice(p, len(data))
	copy(dst, data)
}
