// Command bytevmdump assembles a .lux source file and prints its code
// image as one disassembled instruction per line, without running it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmay/bytevm/pkg/asm"
	"github.com/rmay/bytevm/pkg/diag"
	"github.com/rmay/bytevm/pkg/vm"
)

func main() {
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("Usage: bytevmdump <file.lux>")
		os.Exit(1)
	}

	path := flag.Args()[0]
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bytevmdump: %v\n", err)
		os.Exit(1)
	}

	lexer := asm.NewLexer(path, source)
	emitter := asm.NewEmitter(lexer)
	code := emitter.Assemble()

	if emitter.WasError() {
		diag.NewWriter(os.Stderr).ReportAll(emitter.Diagnostics())
		os.Exit(1)
	}

	fmt.Print(vm.Disassemble(code))
}
