package asm

import (
	"encoding/binary"
	"testing"

	"github.com/rmay/bytevm/pkg/vm"
)

func assembleSource(src string) (*Emitter, []byte) {
	lx := NewLexer("t.lux", []byte(src))
	e := NewEmitter(lx)
	code := e.Assemble()
	return e, code
}

func u64At(code []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(code[offset : offset+8])
}

func TestEmitterPushEncodesSizeAndTruncatedValue(t *testing.T) {
	e, code := assembleSource("push 8 42")
	if e.WasError() {
		t.Fatalf("unexpected diagnostics: %v", e.Diagnostics())
	}
	if len(code) != 1+8+8 {
		t.Fatalf("expected 17 bytes, got %d", len(code))
	}
	if vm.Op(code[0]) != vm.OpPush {
		t.Errorf("expected OpPush, got %s", vm.Op(code[0]))
	}
	if u64At(code, 1) != 8 {
		t.Errorf("expected size 8, got %d", u64At(code, 1))
	}
	if u64At(code, 9) != 42 {
		t.Errorf("expected value 42, got %d", u64At(code, 9))
	}
}

func TestEmitterPushTruncatesToSize(t *testing.T) {
	_, code := assembleSource("push 1 300") // 300 truncated to one byte is 44
	if code[9] != 44 {
		t.Errorf("expected truncated byte 44, got %d", code[9])
	}
}

func TestEmitterSimpleOpcodes(t *testing.T) {
	_, code := assembleSource("get-stack-top get-stack-bottom exit")
	want := []byte{byte(vm.OpGetStackTop), byte(vm.OpGetStackBottom), byte(vm.OpExit)}
	if len(code) != len(want) {
		t.Fatalf("expected %d bytes, got %d", len(want), len(code))
	}
	for i, b := range want {
		if code[i] != b {
			t.Errorf("byte %d: got 0x%02X, want 0x%02X", i, code[i], b)
		}
	}
}

func TestEmitterBackwardLabelReference(t *testing.T) {
	_, code := assembleSource(": here exit jump here")
	// ":here" at offset 0, "exit" at offset 0 (label marks the position
	// before exit is emitted), then "jump here" follows.
	jumpOffset := 1 // one byte for exit
	if vm.Op(code[jumpOffset]) != vm.OpJump {
		t.Fatalf("expected jump opcode at %d, got %s", jumpOffset, vm.Op(code[jumpOffset]))
	}
	target := u64At(code, jumpOffset+1)
	if target != 0 {
		t.Errorf("expected jump target 0 (label position), got %d", target)
	}
}

func TestEmitterForwardLabelReference(t *testing.T) {
	_, code := assembleSource("jump skip push 8 99 : skip exit")
	target := u64At(code, 1)
	// jump (1) + u64 (8) = 9, push opcode (1) + size (8) + value (8) = 17,
	// so "skip" resolves to offset 9+17 = 26.
	want := uint64(1 + 8 + 1 + 8 + 8)
	if target != want {
		t.Errorf("expected forward jump target %d, got %d", want, target)
	}
	if vm.Op(code[target]) != vm.OpExit {
		t.Errorf("expected exit opcode at resolved label, got %s", vm.Op(code[target]))
	}
}

func TestEmitterUnresolvedLabelIsDiagnostic(t *testing.T) {
	e, _ := assembleSource("jump nowhere exit")
	if !e.WasError() {
		t.Fatal("expected a diagnostic for an unresolved label")
	}
	found := false
	for _, d := range e.Diagnostics() {
		if contains(d.Message, "undefined label") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an 'undefined label' diagnostic, got %v", e.Diagnostics())
	}
}

func TestEmitterDuplicateLabelIsDiagnostic(t *testing.T) {
	e, _ := assembleSource(": again exit : again exit")
	if !e.WasError() {
		t.Fatal("expected a diagnostic for a duplicate label")
	}
	found := false
	for _, d := range e.Diagnostics() {
		if contains(d.Message, "duplicate label") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a 'duplicate label' diagnostic, got %v", e.Diagnostics())
	}
}

func TestEmitterMacroExpansion(t *testing.T) {
	e, code := assembleSource("macro PUSH42 ( push 8 42 ) ! PUSH42 print 8 exit")
	if e.WasError() {
		t.Fatalf("unexpected diagnostics: %v", e.Diagnostics())
	}
	if vm.Op(code[0]) != vm.OpPush {
		t.Fatalf("expected expanded push opcode, got %s", vm.Op(code[0]))
	}
	if u64At(code, 9) != 42 {
		t.Errorf("expected expanded value 42, got %d", u64At(code, 9))
	}
	printOffset := 1 + 8 + 8
	if vm.Op(code[printOffset]) != vm.OpPrint {
		t.Errorf("expected print opcode after macro expansion, got %s", vm.Op(code[printOffset]))
	}
}

func TestEmitterNestedMacroExpansion(t *testing.T) {
	e, code := assembleSource("macro INNER ( push 8 1 ) macro OUTER ( ! INNER exit ) ! OUTER")
	if e.WasError() {
		t.Fatalf("unexpected diagnostics: %v", e.Diagnostics())
	}
	if vm.Op(code[0]) != vm.OpPush {
		t.Fatalf("expected push from inner macro, got %s", vm.Op(code[0]))
	}
	if vm.Op(code[1+8+8]) != vm.OpExit {
		t.Fatalf("expected exit from outer macro, got %s", vm.Op(code[1+8+8]))
	}
}

func TestEmitterUnknownMacroIsDiagnostic(t *testing.T) {
	e, _ := assembleSource("! NOPE exit")
	if !e.WasError() {
		t.Fatal("expected a diagnostic for an unknown macro")
	}
}

func TestEmitterCallCFuncOperands(t *testing.T) {
	_, code := assembleSource("call-c-func 2 1 4 8")
	if vm.Op(code[0]) != vm.OpCallCFunc {
		t.Fatalf("expected call-c-func opcode, got %s", vm.Op(code[0]))
	}
	if u64At(code, 1) != 2 {
		t.Errorf("expected argCount 2, got %d", u64At(code, 1))
	}
	if u64At(code, 9) != 1 {
		t.Errorf("expected argSize[0] 1, got %d", u64At(code, 9))
	}
	if u64At(code, 17) != 4 {
		t.Errorf("expected argSize[1] 4, got %d", u64At(code, 17))
	}
	if u64At(code, 25) != 8 {
		t.Errorf("expected retSize 8, got %d", u64At(code, 25))
	}
}

func TestEmitterMissingOperandIsDiagnostic(t *testing.T) {
	e, _ := assembleSource("push 8")
	if !e.WasError() {
		t.Fatal("expected a diagnostic for a missing push value")
	}
}
