package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/rmay/bytevm/pkg/diag"
	"github.com/rmay/bytevm/pkg/vm"
)

// pendingRef is a patch site: wordSize placeholder bytes already written
// at offset, waiting for labelName's address once the whole source has
// been scanned.
type pendingRef struct {
	offset    int
	labelName string
	span      diag.Span
}

// macroDef is a captured, unexpanded token sequence bound to a name.
type macroDef struct {
	tokens []Token
	span   diag.Span
}

// Emitter assembles a token stream into a code image. It records every
// label reference as an 8-byte placeholder and patches all of them in one
// sweep at end of input, once every label address is known, and expands macros by splicing their captured tokens back
// into the token stream ahead of whatever follows the invocation, so a
// macro invoked from inside another macro's body expands in turn.
type Emitter struct {
	lexer   *Lexer
	pending []Token // front of stream: macro-expanded or pushed-back tokens

	labels  map[string]uint64
	labelAt map[string]diag.Span
	refs    []pendingRef

	macros map[string]*macroDef

	code     []byte
	diags    []diag.Diagnostic
	wasError bool
}

// NewEmitter returns an Emitter that reads tokens from lexer.
func NewEmitter(lexer *Lexer) *Emitter {
	return &Emitter{
		lexer:   lexer,
		labels:  make(map[string]uint64),
		labelAt: make(map[string]diag.Span),
		macros:  make(map[string]*macroDef),
	}
}

// Diagnostics returns every assembly diagnostic raised during Assemble,
// in the order encountered, followed by the lexer's diagnostics.
func (e *Emitter) Diagnostics() []diag.Diagnostic { return e.diags }

// WasError reports whether Assemble encountered any diagnostic. The
// returned code image is not meaningful when this is true.
func (e *Emitter) WasError() bool { return e.wasError }

func (e *Emitter) errorf(span diag.Span, format string, args ...any) {
	e.wasError = true
	e.diags = append(e.diags, diag.Diagnostic{Span: span, Message: fmt.Sprintf(format, args...)})
}

// next returns the next token: from the pending deque if non-empty,
// otherwise from the lexer. Lexical errors are copied into the emitter's
// diagnostics by Assemble at end of input, so a single Diagnostics() call
// reports everything.
func (e *Emitter) next() Token {
	if len(e.pending) > 0 {
		tok := e.pending[0]
		e.pending = e.pending[1:]
		return tok
	}
	return e.lexer.Next()
}

// expandMacro splices a macro's captured tokens onto the head of the
// stream, ahead of whatever token follows the invocation. Recursive or
// mutually recursive macros expand without bound; a macro that invokes
// itself diverges the assembler, matching the grammar's unconditional
// expansion rule.
func (e *Emitter) expandMacro(m *macroDef) {
	e.pending = append(append([]Token{}, m.tokens...), e.pending...)
}

// readMacroUse consumes the Name following a '!' and expands the bound
// macro, or reports a diagnostic if no macro by that name exists.
func (e *Emitter) readMacroUse(bangSpan diag.Span) {
	nameTok := e.next()
	if nameTok.Kind != KindName {
		e.errorf(nameTok.Span, "expected macro name after '!', found %s", nameTok.Kind)
		return
	}
	name := string(nameTok.Name)
	m, ok := e.macros[name]
	if !ok {
		e.errorf(bangSpan, "unknown macro %q", name)
		return
	}
	e.expandMacro(m)
}

func (e *Emitter) emitByte(b byte) {
	e.code = append(e.code, b)
}

// emitU64 appends v as 8 little-endian bytes and returns the offset it
// was written at.
func (e *Emitter) emitU64(v uint64) int {
	offset := len(e.code)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	e.code = append(e.code, buf[:]...)
	return offset
}

// emitTruncated appends the low size bytes of v, zero-extending if size
// exceeds 8. This is Push's variable-width immediate: size is the
// payload length the interpreter will read back, not always a full
// machine word.
func (e *Emitter) emitTruncated(v uint64, size uint64) {
	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], v)
	for i := uint64(0); i < size; i++ {
		if i < 8 {
			e.code = append(e.code, word[i])
		} else {
			e.code = append(e.code, 0)
		}
	}
}

// emitLabelRef writes an 8-byte placeholder for name's eventual address
// and records the patch site for resolution at end of input.
func (e *Emitter) emitLabelRef(name string, span diag.Span) {
	offset := e.emitU64(0)
	e.refs = append(e.refs, pendingRef{offset: offset, labelName: name, span: span})
}

func (e *Emitter) defineLabel(name string, span diag.Span) {
	if _, exists := e.labels[name]; exists {
		e.errorf(span, "duplicate label %q (first defined at %s)", name, e.labelAt[name])
		return
	}
	e.labels[name] = uint64(len(e.code))
	e.labelAt[name] = span
}

// expectInteger reads one token and requires it to be an integer
// literal, reporting context on mismatch.
func (e *Emitter) expectInteger(context string) uint64 {
	tok := e.next()
	if tok.Kind != KindInteger {
		e.errorf(tok.Span, "expected integer for %s, found %s", context, tok.Kind)
		return 0
	}
	return tok.IntValue
}

// readLabelTarget reads a bare label name, the operand form jump,
// jump-zero, and jump-non-zero take.
func (e *Emitter) readLabelTarget(context string) {
	tok := e.next()
	if tok.Kind != KindName {
		e.errorf(tok.Span, "expected label name for %s, found %s", context, tok.Kind)
		e.emitU64(0)
		return
	}
	e.emitLabelRef(string(tok.Name), tok.Span)
}

// sizeOnly emits op followed by a single wordSize integer operand, the
// shape shared by alloc-stack, pop, dup, add, sub, print, load, and
// store.
func (e *Emitter) sizeOnly(op vm.Op) {
	e.emitByte(byte(op))
	size := e.expectInteger(op.String() + " size")
	e.emitU64(size)
}

// Assemble consumes the entire token stream and returns the finished
// code image. Diagnostics() reports every lexical and assembly error
// found along the way; when it is non-empty the returned image should
// not be run.
func (e *Emitter) Assemble() []byte {
	for {
		tok := e.next()
		switch tok.Kind {
		case KindEndOfFile:
			e.resolveLabels()
			if lexDiags := e.lexer.Diagnostics(); len(lexDiags) > 0 {
				e.wasError = true
				e.diags = append(e.diags, lexDiags...)
			}
			return e.code

		case KindColon:
			nameTok := e.next()
			if nameTok.Kind != KindName {
				e.errorf(nameTok.Span, "expected a name after ':', found %s", nameTok.Kind)
				continue
			}
			e.defineLabel(string(nameTok.Name), nameTok.Span)

		case KindBang:
			e.readMacroUse(tok.Span)

		case KindMacro:
			e.readMacroDefinition()

		case KindExit:
			e.emitByte(byte(vm.OpExit))

		case KindPush:
			e.emitByte(byte(vm.OpPush))
			size := e.expectInteger("push size")
			e.emitU64(size)
			value := e.expectInteger("push value")
			e.emitTruncated(value, size)

		case KindAllocStack:
			e.sizeOnly(vm.OpAllocStack)
		case KindPop:
			e.sizeOnly(vm.OpPop)
		case KindDup:
			e.sizeOnly(vm.OpDup)
		case KindAdd:
			e.sizeOnly(vm.OpAdd)
		case KindSub:
			e.sizeOnly(vm.OpSub)
		case KindPrint:
			e.sizeOnly(vm.OpPrint)
		case KindLoad:
			e.sizeOnly(vm.OpLoad)
		case KindStore:
			e.sizeOnly(vm.OpStore)

		case KindJump:
			e.emitByte(byte(vm.OpJump))
			e.readLabelTarget("jump")

		case KindJumpZero:
			e.emitByte(byte(vm.OpJumpZero))
			size := e.expectInteger("jump-zero size")
			e.emitU64(size)
			e.readLabelTarget("jump-zero")

		case KindJumpNonZero:
			e.emitByte(byte(vm.OpJumpNonZero))
			size := e.expectInteger("jump-non-zero size")
			e.emitU64(size)
			e.readLabelTarget("jump-non-zero")

		case KindGetStackTop:
			e.emitByte(byte(vm.OpGetStackTop))
		case KindGetStackBottom:
			e.emitByte(byte(vm.OpGetStackBottom))

		case KindCallCFunc:
			e.emitByte(byte(vm.OpCallCFunc))
			argCount := e.expectInteger("call-c-func argument count")
			e.emitU64(argCount)
			for i := uint64(0); i < argCount; i++ {
				size := e.expectInteger("call-c-func argument size")
				e.emitU64(size)
			}
			retSize := e.expectInteger("call-c-func return size")
			e.emitU64(retSize)

		default:
			e.errorf(tok.Span, "unexpected token %s", tok.Kind)
		}
	}
}

// readMacroDefinition consumes "macro NAME ( ... )". The body between
// the parentheses is captured verbatim, unexpanded; parentheses do not
// nest, so the first ')' ends the definition.
func (e *Emitter) readMacroDefinition() {
	nameTok := e.next()
	if nameTok.Kind != KindName {
		e.errorf(nameTok.Span, "expected macro name, found %s", nameTok.Kind)
		return
	}
	name := string(nameTok.Name)

	openTok := e.next()
	if openTok.Kind != KindOpenParen {
		e.errorf(openTok.Span, "expected '(' after macro name %q, found %s", name, openTok.Kind)
		return
	}

	var body []Token
	for {
		tok := e.next()
		if tok.Kind == KindCloseParen {
			break
		}
		if tok.Kind == KindEndOfFile {
			e.errorf(tok.Span, "unterminated macro %q: missing ')'", name)
			break
		}
		body = append(body, tok)
	}

	if existing, exists := e.macros[name]; exists {
		e.errorf(nameTok.Span, "duplicate macro %q (first defined at %s)", name, existing.span)
		return
	}
	e.macros[name] = &macroDef{tokens: body, span: nameTok.Span}
}

// resolveLabels patches every recorded forward reference now that the
// whole source has been scanned, and reports any label that was
// referenced but never defined.
func (e *Emitter) resolveLabels() {
	for _, ref := range e.refs {
		addr, ok := e.labels[ref.labelName]
		if !ok {
			e.errorf(ref.span, "undefined label %q", ref.labelName)
			continue
		}
		binary.LittleEndian.PutUint64(e.code[ref.offset:ref.offset+8], addr)
	}
}
