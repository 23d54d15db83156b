package vm

import (
	"encoding/binary"
	"fmt"
)

// execArith implements Add and Sub. The value pushed last is the right
// operand: it is popped first, so "push a; push b; sub size" leaves
// a-b on the stack.
func (vm *VM) execArith(at int, op Op) error {
	size, err := vm.decodeU64()
	if err != nil {
		return err
	}

	b, err := vm.pop(at, size)
	if err != nil {
		return err
	}
	bCopy := append([]byte(nil), b...)
	a, err := vm.pop(at, size)
	if err != nil {
		return err
	}

	var result []byte
	switch size {
	case 1:
		av, bv := a[0], bCopy[0]
		var r byte
		if op == OpAdd {
			r = av + bv
		} else {
			r = av - bv
		}
		result = []byte{r}
	case 2:
		av := binary.LittleEndian.Uint16(a)
		bv := binary.LittleEndian.Uint16(bCopy)
		var r uint16
		if op == OpAdd {
			r = av + bv
		} else {
			r = av - bv
		}
		result = make([]byte, 2)
		binary.LittleEndian.PutUint16(result, r)
	case 4:
		av := binary.LittleEndian.Uint32(a)
		bv := binary.LittleEndian.Uint32(bCopy)
		var r uint32
		if op == OpAdd {
			r = av + bv
		} else {
			r = av - bv
		}
		result = make([]byte, 4)
		binary.LittleEndian.PutUint32(result, r)
	case 8:
		av := binary.LittleEndian.Uint64(a)
		bv := binary.LittleEndian.Uint64(bCopy)
		var r uint64
		if op == OpAdd {
			r = av + bv
		} else {
			r = av - bv
		}
		result = make([]byte, 8)
		binary.LittleEndian.PutUint64(result, r)
	default:
		return vm.fatalf(at, "unsupported %s size %d (must be 1, 2, 4, or 8)", op, size)
	}

	return vm.push(at, result)
}

// execPrint implements Print: decimal for the four native widths,
// space-separated hex bytes (most-recently-pushed byte first) otherwise.
func (vm *VM) execPrint(at int) error {
	size, err := vm.decodeU64()
	if err != nil {
		return err
	}
	data, err := vm.pop(at, size)
	if err != nil {
		return err
	}

	switch size {
	case 1:
		fmt.Fprintf(vm.stdout, "%d\n", data[0])
	case 2:
		fmt.Fprintf(vm.stdout, "%d\n", binary.LittleEndian.Uint16(data))
	case 4:
		fmt.Fprintf(vm.stdout, "%d\n", binary.LittleEndian.Uint32(data))
	case 8:
		fmt.Fprintf(vm.stdout, "%d\n", binary.LittleEndian.Uint64(data))
	default:
		for i := len(data) - 1; i >= 0; i-- {
			if i != len(data)-1 {
				fmt.Fprint(vm.stdout, " ")
			}
			fmt.Fprintf(vm.stdout, "%x", data[i])
		}
		fmt.Fprintln(vm.stdout)
	}
	return nil
}

// execCallCFunc implements CallCFunc: decode the argument/return size
// table, pop the function pointer and arguments off the stack, and hand
// them to the host-call trampoline.
func (vm *VM) execCallCFunc(at int) error {
	argCount, err := vm.decodeU64()
	if err != nil {
		return err
	}
	argSizes := make([]uint64, argCount)
	for i := range argSizes {
		argSizes[i], err = vm.decodeU64()
		if err != nil {
			return err
		}
		if argSizes[i] > 8 {
			return vm.fatalf(at, "host call argument %d size %d exceeds 8 bytes", i, argSizes[i])
		}
	}
	retSize, err := vm.decodeU64()
	if err != nil {
		return err
	}
	if retSize > 8 {
		return vm.fatalf(at, "host call return size %d exceeds 8 bytes", retSize)
	}

	args := make([][]byte, argCount)
	for i := int(argCount) - 1; i >= 0; i-- {
		data, err := vm.pop(at, argSizes[i])
		if err != nil {
			return err
		}
		args[i] = append([]byte(nil), data...)
	}

	fnPtrBytes, err := vm.pop(at, wordSize)
	if err != nil {
		return err
	}
	fnPtr := binary.LittleEndian.Uint64(fnPtrBytes)

	result, err := vm.caller.Call(fnPtr, args, retSize)
	if err != nil {
		return vm.fatalf(at, "host call failed: %v", err)
	}

	retBytes := encodeU64(result)[:retSize]
	return vm.push(at, retBytes)
}
