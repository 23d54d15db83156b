package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders code as one "<offset>: <mnemonic> <operands>" line
// per instruction. It never executes anything; a malformed tail simply
// stops early with a trailing comment noting the truncation, since a
// disassembler has no interpreter loop to trap a fatal error into.
func Disassemble(code []byte) string {
	var b strings.Builder
	ip := 0
	for ip < len(code) {
		start := ip
		op := Op(code[ip])
		ip++

		readWord := func() (uint64, bool) {
			if ip+wordSize > len(code) {
				return 0, false
			}
			v := binary.LittleEndian.Uint64(code[ip : ip+wordSize])
			ip += wordSize
			return v, true
		}

		fmt.Fprintf(&b, "%6d: %-16s", start, op)

		switch op {
		case OpExit, OpGetStackTop, OpGetStackBottom:
			// no operands

		case OpPush:
			size, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "; truncated\n")
				return b.String()
			}
			if ip+int(size) > len(code) {
				fmt.Fprintf(&b, "%d ; truncated payload\n", size)
				return b.String()
			}
			payload := code[ip : ip+int(size)]
			ip += int(size)
			fmt.Fprintf(&b, "%d %x", size, payload)

		case OpAllocStack, OpPop, OpDup, OpAdd, OpSub, OpPrint, OpLoad, OpStore:
			size, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "; truncated\n")
				return b.String()
			}
			fmt.Fprintf(&b, "%d", size)

		case OpJump:
			target, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "; truncated\n")
				return b.String()
			}
			fmt.Fprintf(&b, "%d", target)

		case OpJumpZero, OpJumpNonZero:
			size, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "; truncated\n")
				return b.String()
			}
			target, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "%d ; truncated\n", size)
				return b.String()
			}
			fmt.Fprintf(&b, "%d %d", size, target)

		case OpCallCFunc:
			argCount, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, "; truncated\n")
				return b.String()
			}
			fmt.Fprintf(&b, "%d", argCount)
			truncated := false
			for i := uint64(0); i < argCount; i++ {
				size, ok := readWord()
				if !ok {
					truncated = true
					break
				}
				fmt.Fprintf(&b, " %d", size)
			}
			if truncated {
				fmt.Fprintf(&b, " ; truncated\n")
				return b.String()
			}
			retSize, ok := readWord()
			if !ok {
				fmt.Fprintf(&b, " ; truncated\n")
				return b.String()
			}
			fmt.Fprintf(&b, " %d", retSize)

		default:
			fmt.Fprintf(&b, "; invalid opcode 0x%02X", byte(op))
		}

		fmt.Fprintln(&b)
	}
	return b.String()
}
