package asm

import (
	"bytes"
	"testing"

	"github.com/rmay/bytevm/pkg/vm"
)

// runSource assembles src and runs it to completion, returning stdout.
func runSource(t *testing.T, src string) string {
	t.Helper()
	e, code := assembleSource(src)
	if e.WasError() {
		t.Fatalf("assembly failed: %v", e.Diagnostics())
	}
	var out bytes.Buffer
	machine := vm.New(code, vm.WithStdout(&out))
	if err := machine.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return out.String()
}

// S1: push 8 40; push 8 2; add 8; print 8; exit -> "42\n"
func TestScenarioArithmeticPrint(t *testing.T) {
	got := runSource(t, "push 8 40 push 8 2 add 8 print 8 exit")
	if got != "42\n" {
		t.Errorf("expected \"42\\n\", got %q", got)
	}
}

// S2: a zero byte is pushed, jump-zero consumes it and branches past the
// print, leaving stdout empty.
func TestScenarioBranch(t *testing.T) {
	got := runSource(t, "push 1 0 jump-zero 1 end push 8 1 print 8 : end exit")
	if got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

// S4: a forward-referenced label patches correctly; the print before the
// label is skipped entirely.
func TestScenarioForwardLabelPatch(t *testing.T) {
	got := runSource(t, "jump skip push 8 99 print 8 : skip push 8 1 print 8 exit")
	if got != "1\n" {
		t.Errorf("expected \"1\\n\", got %q", got)
	}
}

// S6: a macro expands to the instructions it captured.
func TestScenarioMacroExpansion(t *testing.T) {
	got := runSource(t, "macro PUSH42 ( push 8 42 ) ! PUSH42 print 8 exit")
	if got != "42\n" {
		t.Errorf("expected \"42\\n\", got %q", got)
	}
}

// Invariant 2: push size a; push size b; add size leaves (a+b) mod 2^(8*size).
func TestInvariantAddWraps(t *testing.T) {
	got := runSource(t, "push 1 250 push 1 10 add 1 print 1 exit")
	if got != "4\n" { // (250+10) mod 256 = 4
		t.Errorf("expected \"4\\n\", got %q", got)
	}
}

// Invariant 3: dup is idempotent in content.
func TestInvariantDupIdempotent(t *testing.T) {
	e, code := assembleSource("push 4 7 dup 4 exit")
	if e.WasError() {
		t.Fatalf("assembly failed: %v", e.Diagnostics())
	}
	machine := vm.New(code)
	if err := machine.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	stack := machine.Stack()
	if len(stack) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(stack))
	}
	if !bytes.Equal(stack[:4], stack[4:]) {
		t.Errorf("expected duplicated halves to match, got %v", stack)
	}
}

func TestDiagnosticReportsSourceLocation(t *testing.T) {
	lx := NewLexer("bad.lux", []byte("exit\n%"))
	e := NewEmitter(lx)
	e.Assemble()
	if !e.WasError() {
		t.Fatal("expected a diagnostic for the invalid byte")
	}
	found := false
	for _, d := range e.Diagnostics() {
		if d.Span.Path == "bad.lux" && d.Span.Line == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a diagnostic anchored to bad.lux:2, got %v", e.Diagnostics())
	}
}
