// Command tccompile reads a TC source file and writes the NASM
// assembly it compiles to, either to a given output path or to stdout.
//
// Invoking NASM and the linker on the output is outside this program's
// job; that's a separate driver's responsibility.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/LilConsul/tinycompiled"
)

func main() {
	var (
		output    = flag.String("o", "", "output path (default: stdout)")
		dumpToks  = flag.Bool("tokens", false, "print the token stream instead of compiling")
		dumpAST   = flag.Bool("ast", false, "print the parsed statement tree instead of compiling")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-o out.asm] [-tokens|-ast] input.tc\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	src, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch {
	case *dumpToks:
		runDumpTokens(string(src))
	case *dumpAST:
		runDumpAST(string(src))
	default:
		runCompile(string(src), *output)
	}
}

func runDumpTokens(src string) {
	toks, err := tinycompiled.Tokenize(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, t := range toks {
		fmt.Printf("%-12s %-10v %d:%d\n", t.Kind, t.Value, t.Line, t.Column)
	}
}

func runDumpAST(src string) {
	toks, err := tinycompiled.Tokenize(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	prog, err := tinycompiled.Parse(toks)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Print(prog.String())
}

func runCompile(src, output string) {
	asm, err := tinycompiled.Compile(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if output == "" {
		fmt.Print(asm)
		return
	}

	if err := os.WriteFile(output, []byte(asm), 0644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
