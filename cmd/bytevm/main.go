// Command bytevm assembles and runs a single .lux source file.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmay/bytevm/pkg/asm"
	"github.com/rmay/bytevm/pkg/diag"
	"github.com/rmay/bytevm/pkg/vm"
)

var traceFlag = flag.Bool("trace", false, "log each decoded token and instruction to stderr")

func main() {
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("Usage: bytevm [options] <file.lux>")
		fmt.Println("\nOptions:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	path := flag.Args()[0]
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bytevm: %v\n", err)
		os.Exit(1)
	}

	lexer := asm.NewLexer(path, source)
	lexer.SetTrace(*traceFlag)
	emitter := asm.NewEmitter(lexer)
	code := emitter.Assemble()

	diagWriter := diag.NewWriter(os.Stderr)
	if emitter.WasError() {
		diagWriter.ReportAll(emitter.Diagnostics())
		os.Exit(1)
	}

	machine := vm.New(code, vm.WithTrace(*traceFlag))
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "bytevm: %v\n", err)
		os.Exit(1)
	}
}
