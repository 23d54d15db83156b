// Package asm turns assembly source text into a byte-addressed code
// image: a lexer producing a lazy token sequence, and an emitter that
// resolves labels and expands macros while appending to the image.
package asm

import "github.com/rmay/bytevm/pkg/diag"

// Kind tags a Token. Lexer keyword kinds correspond 1:1 with vm.Op
// mnemonics, plus the punctuation and literal kinds the grammar needs.
type Kind int

const (
	KindEndOfFile Kind = iota
	KindColon
	KindBang
	KindOpenParen
	KindCloseParen
	KindInteger
	KindName
	KindMacro

	// One kind per opcode mnemonic (spec.md §6's keyword table).
	KindExit
	KindPush
	KindPop
	KindAllocStack
	KindDup
	KindAdd
	KindSub
	KindPrint
	KindJump
	KindJumpZero
	KindJumpNonZero
	KindGetStackTop
	KindGetStackBottom
	KindLoad
	KindStore
	KindCallCFunc
)

var kindNames = map[Kind]string{
	KindEndOfFile:      "end of file",
	KindColon:          "':'",
	KindBang:           "'!'",
	KindOpenParen:      "'('",
	KindCloseParen:     "')'",
	KindInteger:        "integer",
	KindName:           "name",
	KindMacro:          "macro",
	KindExit:           "exit",
	KindPush:           "push",
	KindPop:            "pop",
	KindAllocStack:     "alloc-stack",
	KindDup:            "dup",
	KindAdd:            "add",
	KindSub:            "sub",
	KindPrint:          "print",
	KindJump:           "jump",
	KindJumpZero:       "jump-zero",
	KindJumpNonZero:    "jump-non-zero",
	KindGetStackTop:    "get-stack-top",
	KindGetStackBottom: "get-stack-bottom",
	KindLoad:           "load",
	KindStore:          "store",
	KindCallCFunc:      "call-c-func",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "?unknown kind?"
}

// keywords maps the reserved mnemonic spelling to its token kind. A Name
// not found here stays a plain KindName.
var keywords = map[string]Kind{
	"exit":              KindExit,
	"push":              KindPush,
	"pop":               KindPop,
	"alloc-stack":       KindAllocStack,
	"dup":               KindDup,
	"add":               KindAdd,
	"sub":               KindSub,
	"print":             KindPrint,
	"jump":              KindJump,
	"jump-zero":         KindJumpZero,
	"jump-non-zero":     KindJumpNonZero,
	"get-stack-top":     KindGetStackTop,
	"get-stack-bottom":  KindGetStackBottom,
	"load":              KindLoad,
	"store":             KindStore,
	"call-c-func":       KindCallCFunc,
	"macro":             KindMacro,
}

// Token is a tagged lexeme: a kind, its source span, and either an
// integer value or an interned name slice, depending on kind.
type Token struct {
	Kind     Kind
	Span     diag.Span
	IntValue uint64
	Name     []byte
}
