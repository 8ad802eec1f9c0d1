package tinycompiled

import (
	"strings"
	"testing"
)

// compileOK is a small helper shared by the scenarios below: since the
// generated NASM can't be assembled, linked, or run in this environment,
// these tests assert on the structure of the emitted assembly instead
// of on program behavior (§8's concrete scenarios).
func compileOK(t *testing.T, src string) string {
	t.Helper()
	out, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return out
}

func TestScenarioPrintLiteral(t *testing.T) {
	out := compileOK(t, "VAR x, 42\nPRINT x\nHALT\n")
	if !strings.Contains(out, "x dq 42") {
		t.Errorf("expected x initialized to 42 in .data:\n%s", out)
	}
	if !strings.Contains(out, "call print_int") {
		t.Errorf("expected a PRINT to lower to a print_int call:\n%s", out)
	}
	if !strings.Contains(out, "print_int:") {
		t.Errorf("expected the print_int helper to be emitted:\n%s", out)
	}
}

func TestScenarioSumOneToHundredViaWhile(t *testing.T) {
	src := "VAR limit, 100\n" +
		"LOAD R1, 0\n" +
		"LOAD R2, 1\n" +
		"WHILE R2 <= limit\n" +
		"ADD R1, R1, R2\n" +
		"INC R2\n" +
		"ENDWHILE\n" +
		"PRINT R1\nHALT\n"
	out := compileOK(t, src)
	if !strings.Contains(out, "limit dq 100") {
		t.Fatalf("expected limit initialized to 100:\n%s", out)
	}
	if !strings.Contains(out, "jg while_end_") {
		t.Errorf("<= condition should lower to jg on the false branch:\n%s", out)
	}
	if !strings.Contains(out, "add rax, rbx") {
		t.Errorf("expected R1 += R2 to lower to add rax, rbx:\n%s", out)
	}
}

func TestScenarioForAscending(t *testing.T) {
	out := compileOK(t, "FOR i FROM 1 TO 5\nPRINT i\nENDFOR\nHALT\n")
	if !strings.Contains(out, "jg for_end_") {
		t.Errorf("ascending FOR should exit via jg:\n%s", out)
	}
	if !strings.Contains(out, "inc qword [i]") {
		t.Errorf("unit step should fold to inc:\n%s", out)
	}
}

func TestScenarioForDescending(t *testing.T) {
	out := compileOK(t, "FOR i FROM 5 TO 1 STEP -1\nPRINT i\nENDFOR\nHALT\n")
	if !strings.Contains(out, "jl for_end_") {
		t.Errorf("descending FOR should exit via jl:\n%s", out)
	}
	if !strings.Contains(out, "dec qword [i]") {
		t.Errorf("step of -1 should fold to dec:\n%s", out)
	}
}

func TestScenarioRepeatUntil(t *testing.T) {
	src := "VAR x, 0\nREPEAT\nINC x\nUNTIL x >= 3\nPRINT x\nHALT\n"
	out := compileOK(t, src)
	if !strings.Contains(out, "repeat_start_") {
		t.Errorf("expected a repeat_start label:\n%s", out)
	}
	if !strings.Contains(out, "jl repeat_start_") {
		t.Errorf(">= false branch should loop back via jl:\n%s", out)
	}
}

func TestScenarioDivision(t *testing.T) {
	out := compileOK(t, "LOAD R1, 17\nLOAD R2, 5\nDIV R3, R1, R2\nPRINT R3\nHALT\n")
	if !strings.Contains(out, "xor rdx, rdx") || !strings.Contains(out, "div rbx") {
		t.Errorf("expected an unsigned division sequence against rbx:\n%s", out)
	}
	if !strings.Contains(out, "mov rcx, rax") {
		t.Errorf("expected the quotient moved into the destination register:\n%s", out)
	}
}

func TestScenarioFunctionCallReturn(t *testing.T) {
	src := "FUNC triple\nADD R2, R1, R1\nADD R1, R2, R1\nRET R1\nENDFUNC\n" +
		"LOAD R1, 3\nCALL triple\nPRINT R1\nHALT\n"
	out := compileOK(t, src)
	if !strings.Contains(out, "triple:") {
		t.Fatalf("expected the function's label:\n%s", out)
	}
	if !strings.Contains(out, "call triple") {
		t.Errorf("expected the call site to reference the function by name:\n%s", out)
	}
	lastExit := strings.LastIndex(out, "mov rax, 60")
	funcIdx := strings.Index(out, "triple:")
	if funcIdx < lastExit {
		t.Errorf("function body should be placed after the program's exit sequence:\n%s", out)
	}
}

func TestScenarioLexicalErrorOnMalformedIdentifier(t *testing.T) {
	if _, err := Compile("VAR 1bad, 5\n"); err == nil {
		t.Fatal("expected a lexical/parse error for an identifier starting with a digit")
	}
}

func TestScenarioSyntacticErrorOnUnclosedIf(t *testing.T) {
	if _, err := Compile("IF R1 > 0\nPRINT R1\n"); err == nil {
		t.Fatal("expected an error for an IF block missing ENDIF")
	}
}

func TestScenarioR9IsNotARegister(t *testing.T) {
	// Only R1-R8 are virtual registers (§3.1); R9 and beyond lex as
	// ordinary identifiers.
	out := compileOK(t, "VAR R9, 7\nPRINT R9\nHALT\n")
	if !strings.Contains(out, "R9 dq 7") {
		t.Errorf("expected R9 treated as a plain identifier variable:\n%s", out)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	src := "VAR x, 1\nWHILE x < 10\nINC x\nENDWHILE\nPRINT x\nHALT\n"
	first := compileOK(t, src)
	second := compileOK(t, src)
	if first != second {
		t.Fatal("Compile produced different output across two runs of the same source")
	}
}

func TestCompileReturnsNoPartialOutputOnError(t *testing.T) {
	out, err := Compile("VAR x, 5\nIF x > 0\nPRINT x\n")
	if err == nil {
		t.Fatal("expected an error for the unclosed IF")
	}
	if out != "" {
		t.Errorf("expected no partial assembly on error, got:\n%s", out)
	}
}

func TestTokenizeParseEmitStagesComposeLikeCompile(t *testing.T) {
	src := "VAR x, 1\nPRINT x\nHALT\n"
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	prog, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	staged, err := Emit(prog)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	whole, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if staged != whole {
		t.Error("running the stages individually should match Compile's output")
	}
}
