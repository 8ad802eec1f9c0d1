// Package tinycompiled is the pipeline driver for the TC-to-NASM
// compiler: it chains the scanner, parser, and emitter and also exposes
// each stage individually, for debug/UI use.
package tinycompiled

import (
	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/diag"
	"github.com/LilConsul/tinycompiled/emitter"
	"github.com/LilConsul/tinycompiled/lexer"
	"github.com/LilConsul/tinycompiled/parser"
	"github.com/LilConsul/tinycompiled/token"
)

// Error is the single structured diagnostic type returned by every
// stage of the pipeline: a source position plus a human-readable
// message. It is an alias for diag.Error so callers who only import the
// root package never need to know the diagnostic type lives one
// package down.
type Error = diag.Error

// Tokenize runs the scanner alone, returning the full token sequence
// (terminated by EOF) or the first lexical error encountered.
func Tokenize(source string) ([]token.Token, error) {
	toks, err := lexer.Scan(source)
	if err != nil {
		return nil, err
	}
	return toks, nil
}

// Parse runs the parser alone over an already-scanned token sequence.
func Parse(tokens []token.Token) (*ast.Program, error) {
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// Emit runs the emitter alone over an already-parsed program. The error
// return exists only because the parser's grammar cannot, by
// construction, rule out a variable redeclared with a conflicting
// initializer (§4.3.2) — the one semantic check left to emission time.
func Emit(program *ast.Program) (string, error) {
	return emitter.Emit(program)
}

// Compile runs the full scanner -> parser -> emitter pipeline over TC
// source text and returns the generated NASM assembly. The first error
// encountered in any stage aborts the pipeline; no partial output is
// returned alongside an error.
func Compile(source string) (string, error) {
	toks, err := Tokenize(source)
	if err != nil {
		return "", err
	}
	prog, err := Parse(toks)
	if err != nil {
		return "", err
	}
	return Emit(prog)
}
