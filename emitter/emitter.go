// Package emitter walks a TC program exactly once and lowers it to
// textual NASM x86-64 assembly for the GNU toolchain on Linux.
//
// A single context value owns the three accumulating buffers (.data,
// .bss, .text) and the monotonic label counter, instead of touching
// package-level globals.
package emitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/diag"
)

// varState records how a declared variable was initialized, so a
// second VAR for the same name can be checked for a conflicting
// initializer (§4.3.2).
type varState struct {
	hasInit bool
	init    int64
}

// context is the emitter's single mutable state, threaded through every
// lowering method instead of held in package globals (§5, §9).
type context struct {
	dataSec strings.Builder
	bssSec  strings.Builder
	textSec strings.Builder

	labelCounter int

	vars     map[string]varState
	varOrder []string // first-declaration order; read only by sortedVarNames

	pendingFuncs []*ast.FuncDef

	needsPrintInt bool
	needsReadInt  bool

	err *diag.Error
}

func newContext() *context {
	return &context{vars: make(map[string]varState)}
}

func (c *context) fail(format string, args ...any) {
	if c.err == nil {
		c.err = diag.At(0, 0, format, args...)
	}
}

// newLabelGroup advances the monotonic label-suffix counter once and
// returns its new value, to be shared by every label belonging to the
// one block construct that called it (§4.3.6: "the counter is advanced
// once per block construct").
func (c *context) newLabelGroup() int {
	c.labelCounter++
	return c.labelCounter
}

func (c *context) emit(format string, args ...any) {
	fmt.Fprintf(&c.textSec, "    "+format+"\n", args...)
}

func (c *context) emitRaw(line string) {
	c.textSec.WriteString(line)
	c.textSec.WriteString("\n")
}

func (c *context) emitLabel(name string) {
	fmt.Fprintf(&c.textSec, "%s:\n", name)
}

// declareData records a VAR with a known initializer. A redeclaration
// with a different initializer is an emission-time error (§4.3.2);
// repeating the identical declaration is idempotent.
func (c *context) declareData(name string, value int64) {
	if st, ok := c.vars[name]; ok {
		if !st.hasInit || st.init != value {
			c.fail("variable %q redeclared with a conflicting initializer", name)
		}
		return
	}
	c.vars[name] = varState{hasInit: true, init: value}
	c.varOrder = append(c.varOrder, name)
	fmt.Fprintf(&c.dataSec, "    %s dq %d\n", name, value)
}

// declareBss records an uninitialized VAR, or the implicit declaration
// of a FOR loop's counter the first time it's seen (§4.3.2).
func (c *context) declareBss(name string) {
	if _, ok := c.vars[name]; ok {
		return
	}
	c.vars[name] = varState{}
	c.varOrder = append(c.varOrder, name)
	fmt.Fprintf(&c.bssSec, "    %s resq 1\n", name)
}

// ensureDeclared implicitly declares name in .bss if it has never been
// seen, used by FOR's counter (§4.3.2: "FOR whose counter is not yet
// declared implicitly declares it in .bss").
func (c *context) ensureDeclared(name string) {
	if _, ok := c.vars[name]; !ok {
		c.declareBss(name)
	}
}

// Emit lowers a parsed program to NASM assembly text. Its only failure
// is §4.3.2's redeclaration rule: a variable declared again with a
// different initializer (e.g. "VAR x, 1" followed by "VAR x, 2", which
// Parse accepts) is reported as an error rather than silently
// miscompiled.
func Emit(program *ast.Program) (string, error) {
	c := newContext()

	c.emitRaw("section .text")
	c.emit("global _start")
	c.textSec.WriteString("\n")
	c.emitLabel("_start")

	for _, stmt := range program.Statements {
		c.emitStmt(stmt)
		if c.err != nil {
			return "", c.err
		}
	}

	c.emitExit()

	for len(c.pendingFuncs) > 0 {
		fn := c.pendingFuncs[0]
		c.pendingFuncs = c.pendingFuncs[1:]
		c.emitFuncDef(fn)
		if c.err != nil {
			return "", c.err
		}
	}

	c.emitIOHelpers()

	return c.build(), nil
}

// build concatenates the section headers and buffers in the fixed
// order .data, .bss, .text (§4.3, §6.3), omitting an empty .data or
// .bss section the way the reference generator does (a program with no
// initialized globals shouldn't emit a bare "section .data").
func (c *context) build() string {
	var out strings.Builder
	if c.dataSec.Len() > 0 {
		out.WriteString("section .data\n")
		out.WriteString(c.dataSec.String())
		out.WriteString("\n")
	}
	if c.bssSec.Len() > 0 {
		out.WriteString("section .bss\n")
		out.WriteString(c.bssSec.String())
		out.WriteString("\n")
	}
	out.WriteString(c.textSec.String())
	return out.String()
}

func (c *context) emitExit() {
	c.emit("mov rax, 60        ; sys_exit")
	c.emit("mov rdi, 0")
	c.emit("syscall")
}

// emitStmt dispatches on the statement's dynamic type. Every type in
// ast.Stmt's closed set has exactly one case here; the default panics
// so that adding a new statement variant without adding its emitter
// case is caught immediately rather than silently compiling to nothing.
func (c *context) emitStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		c.emitVarDecl(s)
	case *ast.Load:
		c.emitLoad(s)
	case *ast.Set:
		c.emitSet(s)
	case *ast.Move:
		c.emit("mov %s, %s", phys(s.DestReg), phys(s.SrcReg))
	case *ast.BinaryArith:
		c.emitBinaryArith(s)
	case *ast.UnaryArith:
		c.emitUnaryArith(s)
	case *ast.BinaryBitwise:
		c.emitBinaryBitwise(s)
	case *ast.Not:
		c.emit("not %s", phys(s.Reg))
	case *ast.Shift:
		c.emitShift(s)
	case *ast.If:
		c.emitIf(s)
	case *ast.While:
		c.emitWhile(s)
	case *ast.For:
		c.emitFor(s)
	case *ast.LoopStmt:
		c.emitLoop(s)
	case *ast.RepeatStmt:
		c.emitRepeat(s)
	case *ast.FuncDef:
		c.pendingFuncs = append(c.pendingFuncs, s)
	case *ast.Call:
		c.emit("call %s", s.Name)
	case *ast.Return:
		c.emitReturn(s)
	case *ast.Push:
		c.emit("push %s", phys(s.Reg))
	case *ast.Pop:
		c.emit("pop %s", phys(s.Reg))
	case *ast.Print:
		c.emitPrint(s)
	case *ast.Input:
		c.emitInput(s)
	case *ast.Halt:
		c.emitExit()
	case *ast.Nop:
		c.emit("nop")
	default:
		panic(fmt.Sprintf("emitter: unhandled statement type %T", stmt))
	}
}

func (c *context) emitStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.emitStmt(s)
		if c.err != nil {
			return
		}
	}
}

func (c *context) emitVarDecl(s *ast.VarDecl) {
	if s.Init != nil {
		c.declareData(s.Name, *s.Init)
	} else {
		c.declareBss(s.Name)
	}
}

// operandAsm renders an Operand as the NASM text it lowers to on the
// right-hand side of a mov (§4.3.3): an immediate, a physical register,
// or a [name] memory reference.
func operandAsm(o ast.Operand) string {
	switch o.Kind {
	case ast.OperandImmediate:
		return fmt.Sprintf("%d", o.Imm)
	case ast.OperandRegister:
		return phys(o.Register)
	case ast.OperandIdentifier:
		return fmt.Sprintf("[%s]", o.Name)
	default:
		return "<invalid operand>"
	}
}

func (c *context) emitLoad(s *ast.Load) {
	c.emit("mov %s, %s", phys(s.DestReg), operandAsm(s.Src))
}

func (c *context) emitSet(s *ast.Set) {
	c.emit("mov qword [%s], %s", s.DestName, operandAsm(s.Src))
}

func (c *context) emitBinaryArith(s *ast.BinaryArith) {
	switch s.Op {
	case ast.ArithAdd:
		c.moveIfNeeded(s.DestReg, s.LeftReg)
		c.emit("add %s, %s", phys(s.DestReg), operandAsm(s.Right))
	case ast.ArithSub:
		c.moveIfNeeded(s.DestReg, s.LeftReg)
		c.emit("sub %s, %s", phys(s.DestReg), operandAsm(s.Right))
	case ast.ArithMul:
		c.emit("imul %s, %s, %s", phys(s.DestReg), phys(s.LeftReg), operandAsm(s.Right))
	case ast.ArithDiv:
		c.emitDiv(s)
	}
}

func (c *context) moveIfNeeded(dest, src int) {
	if dest != src {
		c.emit("mov %s, %s", phys(dest), phys(src))
	}
}

// emitDiv lowers DIV d, l, r, the one arithmetic op that must navigate
// x86-64's implicit rax/rdx operands. It saves and restores only the
// registers it clobbers that it doesn't also overwrite as its result.
//
// Zero-extends rdx before div, i.e. unsigned division, rather than
// sign-extending with cqo before idiv; deliberate, not an oversight.
func (c *context) emitDiv(s *ast.BinaryArith) {
	dest := phys(s.DestReg)
	left := phys(s.LeftReg)

	destIsRdx := dest == "rdx"
	destIsRax := dest == "rax"

	if !destIsRdx {
		c.emit("push rdx")
	}
	if !destIsRax {
		c.emit("push rax")
	}
	if left != "rax" {
		c.emit("mov rax, %s", left)
	}
	c.emit("xor rdx, rdx")
	if s.Right.Kind == ast.OperandImmediate {
		c.emit("mov %s, %d", scratchLeft, s.Right.Imm)
		c.emit("div %s", scratchLeft)
	} else {
		c.emit("div %s", operandAsm(s.Right))
	}
	if !destIsRax {
		c.emit("mov %s, rax", dest)
	}
	if !destIsRax {
		c.emit("pop rax")
	}
	if !destIsRdx {
		c.emit("pop rdx")
	}
}

func (c *context) emitUnaryArith(s *ast.UnaryArith) {
	mnemonic := "inc"
	if s.Op == ast.UnaryDec {
		mnemonic = "dec"
	}
	switch s.Target.Kind {
	case ast.OperandRegister:
		c.emit("%s %s", mnemonic, phys(s.Target.Register))
	case ast.OperandIdentifier:
		c.emit("%s qword [%s]", mnemonic, s.Target.Name)
	}
}

func (c *context) emitBinaryBitwise(s *ast.BinaryBitwise) {
	var mnemonic string
	switch s.Op {
	case ast.BitwiseAnd:
		mnemonic = "and"
	case ast.BitwiseOr:
		mnemonic = "or"
	case ast.BitwiseXor:
		mnemonic = "xor"
	}
	c.moveIfNeeded(s.DestReg, s.LeftReg)
	c.emit("%s %s, %s", mnemonic, phys(s.DestReg), phys(s.RightReg))
}

func (c *context) emitShift(s *ast.Shift) {
	mnemonic := "shl"
	if s.Op == ast.ShiftRight {
		mnemonic = "shr"
	}
	c.moveIfNeeded(s.DestReg, s.SrcReg)
	c.emit("%s %s, %d", mnemonic, phys(s.DestReg), s.Count)
}

// relJumpFalse returns the jump mnemonic that transfers control when
// cond's relational operator is FALSE, per the condition lowering table
// in §4.3.6: == -> jne, != -> je, > -> jle, < -> jge, >= -> jl, <= -> jg.
func relJumpFalse(op ast.RelOp) string {
	switch op {
	case ast.RelEQ:
		return "jne"
	case ast.RelNEQ:
		return "je"
	case ast.RelGT:
		return "jle"
	case ast.RelLT:
		return "jge"
	case ast.RelGTE:
		return "jl"
	case ast.RelLTE:
		return "jg"
	default:
		return "jmp"
	}
}

// loadInto emits the load of an operand into a scratch register,
// covering the three operand shapes condition lowering accepts: a
// register copy, a [name] memory load, or an immediate mov.
func (c *context) loadInto(scratch string, o ast.Operand) {
	c.emit("mov %s, %s", scratch, operandAsm(o))
}

// emitCondition lowers a Condition to a compare-and-jump that transfers
// control to falseLabel iff the condition is false (§4.3.6, the
// "condition lowering" glossary entry): load both operands into r10/
// r11, cmp, then jump on the negated relational test.
func (c *context) emitCondition(cond ast.Condition, falseLabel string) {
	c.loadInto(scratchLeft, cond.Left)
	c.loadInto(scratchRight, cond.Right)
	c.emit("cmp %s, %s", scratchLeft, scratchRight)
	c.emit("%s %s", relJumpFalse(cond.Op), falseLabel)
}

func (c *context) emitIf(s *ast.If) {
	n := c.newLabelGroup()
	elseLabel := fmt.Sprintf("else_%d", n)
	endLabel := fmt.Sprintf("endif_%d", n)

	falseTarget := elseLabel
	if s.Else == nil {
		falseTarget = endLabel
	}
	c.emitCondition(s.Cond, falseTarget)
	c.emitStmts(s.Then)
	if c.err != nil {
		return
	}
	if s.Else != nil {
		c.emit("jmp %s", endLabel)
		c.emitLabel(elseLabel)
		c.emitStmts(s.Else)
		if c.err != nil {
			return
		}
	}
	c.emitLabel(endLabel)
}

func (c *context) emitWhile(s *ast.While) {
	n := c.newLabelGroup()
	startLabel := fmt.Sprintf("while_start_%d", n)
	endLabel := fmt.Sprintf("while_end_%d", n)
	c.emitLabel(startLabel)
	c.emitCondition(s.Cond, endLabel)
	c.emitStmts(s.Body)
	if c.err != nil {
		return
	}
	c.emit("jmp %s", startLabel)
	c.emitLabel(endLabel)
}

// emitFor lowers FOR var FROM start TO end (STEP step)? per §4.3.6's
// template: the counter variable is initialized, the exit test is
// strict (> ascending, < descending) so the range is inclusive on both
// ends when step evenly divides it, and the step is folded to a bare
// inc/dec when it is +-1.
func (c *context) emitFor(s *ast.For) {
	c.ensureDeclared(s.Var)

	n := c.newLabelGroup()
	startLabel := fmt.Sprintf("for_start_%d", n)
	endLabel := fmt.Sprintf("for_end_%d", n)

	c.emit("mov qword [%s], %d", s.Var, s.Start)
	c.emitLabel(startLabel)
	c.emit("mov %s, [%s]", scratchLeft, s.Var)
	c.emit("mov %s, %d", scratchRight, s.End)
	c.emit("cmp %s, %s", scratchLeft, scratchRight)
	if s.Step > 0 {
		c.emit("jg %s", endLabel)
	} else {
		c.emit("jl %s", endLabel)
	}
	c.emitStmts(s.Body)
	if c.err != nil {
		return
	}
	switch s.Step {
	case 1:
		c.emit("inc qword [%s]", s.Var)
	case -1:
		c.emit("dec qword [%s]", s.Var)
	default:
		c.emit("add qword [%s], %d", s.Var, s.Step)
	}
	c.emit("jmp %s", startLabel)
	c.emitLabel(endLabel)
}

// emitLoop lowers LOOP counter, limit per §4.3.6: repeat while counter
// < limit. The body, not the emitter, is responsible for advancing the
// counter.
func (c *context) emitLoop(s *ast.LoopStmt) {
	n := c.newLabelGroup()
	startLabel := fmt.Sprintf("loop_start_%d", n)
	endLabel := fmt.Sprintf("loop_end_%d", n)
	c.emitLabel(startLabel)
	c.emit("mov %s, [%s]", scratchLeft, s.CounterName)
	c.emit("mov %s, %d", scratchRight, s.Limit)
	c.emit("cmp %s, %s", scratchLeft, scratchRight)
	c.emit("jge %s", endLabel)
	c.emitStmts(s.Body)
	if c.err != nil {
		return
	}
	c.emit("jmp %s", startLabel)
	c.emitLabel(endLabel)
}

// emitRepeat lowers REPEAT body UNTIL cond per §4.3.6: the body runs
// first, then the condition's false branch jumps back to the top so
// the loop continues while the condition is false and exits once true.
func (c *context) emitRepeat(s *ast.RepeatStmt) {
	n := c.newLabelGroup()
	startLabel := fmt.Sprintf("repeat_start_%d", n)
	c.emitLabel(startLabel)
	c.emitStmts(s.Body)
	if c.err != nil {
		return
	}
	c.emitCondition(s.Cond, startLabel)
}

// emitFuncDef emits a function body's label. Function bodies are
// placed after the program epilogue (after the sys_exit syscall), so
// straight-line execution from _start can never fall into one.
func (c *context) emitFuncDef(fn *ast.FuncDef) {
	c.textSec.WriteString("\n")
	c.emitLabel(fn.Name)
	c.emitStmts(fn.Body)
}

func (c *context) emitReturn(s *ast.Return) {
	if s.Value != nil {
		c.emit("mov rax, %s", phys(*s.Value))
	}
	c.emit("ret")
}

func (c *context) emitPrint(s *ast.Print) {
	c.needsPrintInt = true
	c.emit("mov %s, %s", scratchIO, operandAsm(s.Value))
	c.emit("call print_int")
}

func (c *context) emitInput(s *ast.Input) {
	c.needsReadInt = true
	c.emit("call read_int")
	switch s.Target.Kind {
	case ast.OperandRegister:
		c.emit("mov %s, %s", phys(s.Target.Register), scratchIO)
	case ast.OperandIdentifier:
		c.emit("mov [%s], %s", s.Target.Name, scratchIO)
	}
}

// emitIOHelpers appends print_int and/or read_int, each only if the
// program actually used PRINT/INPUT (§4.3.8). Both helpers preserve
// every user-visible register: they work in r10-r15 and save and
// restore on the stack the physical registers backing R1-R8 that they
// or their syscalls touch (rax, rcx, rdx, rsi, rdi; print_int also
// saves r11).
func (c *context) emitIOHelpers() {
	if c.needsPrintInt {
		c.emitPrintIntHelper()
	}
	if c.needsReadInt {
		c.emitReadIntHelper()
	}
	if c.needsPrintInt {
		c.dataSec.WriteString("    newline db 10\n")
		c.dataSec.WriteString("    digit_buffer times 24 db 0\n")
	}
	if c.needsReadInt {
		c.bssSec.WriteString("    input_buffer resb 32\n")
	}
}

func (c *context) emitPrintIntHelper() {
	c.textSec.WriteString("\n")
	c.emitLabel("print_int")
	c.emit("push rcx")
	c.emit("push r11")
	c.emit("push rax")
	c.emit("push rdx")
	c.emit("push rsi")
	c.emit("push rdi")

	c.emit("mov r10, r15")
	c.emit("mov r11, 10")
	c.emit("lea r12, [digit_buffer + 23]")
	c.emit("mov byte [r12], 0")
	c.emit("dec r12")
	c.emit("xor r13, r13        ; sign flag")

	c.emit("test r10, r10")
	c.emit("jns .positive")
	c.emit("neg r10")
	c.emit("mov r13, 1")

	c.emitLabel(".positive")
	c.emit("mov rax, r10")
	c.emit("xor rdx, rdx")
	c.emit("div r11")
	c.emit("mov r10, rax")
	c.emit("add dl, '0'")
	c.emit("mov [r12], dl")
	c.emit("dec r12")
	c.emit("test r10, r10")
	c.emit("jnz .positive")

	c.emit("test r13, r13")
	c.emit("jz .print")
	c.emit("mov byte [r12], '-'")
	c.emit("dec r12")

	c.emitLabel(".print")
	c.emit("inc r12")
	c.emit("mov rdx, digit_buffer + 23")
	c.emit("sub rdx, r12")
	c.emit("mov rsi, r12")
	c.emit("mov rax, 1          ; sys_write")
	c.emit("mov rdi, 1          ; stdout")
	c.emit("syscall")

	c.emit("mov rax, 1          ; sys_write")
	c.emit("mov rdi, 1          ; stdout")
	c.emit("lea rsi, [newline]")
	c.emit("mov rdx, 1")
	c.emit("syscall")

	c.emit("pop rdi")
	c.emit("pop rsi")
	c.emit("pop rdx")
	c.emit("pop rax")
	c.emit("pop r11")
	c.emit("pop rcx")
	c.emit("ret")
}

func (c *context) emitReadIntHelper() {
	c.textSec.WriteString("\n")
	c.emitLabel("read_int")
	c.emit("push rcx")
	c.emit("push rax")
	c.emit("push rdx")
	c.emit("push rsi")
	c.emit("push rdi")
	c.emit("mov rax, 0          ; sys_read")
	c.emit("mov rdi, 0          ; stdin")
	c.emit("lea rsi, [input_buffer]")
	c.emit("mov rdx, 32")
	c.emit("syscall")

	c.emit("lea r12, [input_buffer]")
	c.emit("xor r10, r10        ; result")
	c.emit("xor r13, r13        ; sign flag")
	c.emit("mov r11, 10")

	c.emit("movzx r14, byte [r12]")
	c.emit("cmp r14b, '-'")
	c.emit("jne .parse_loop")
	c.emit("mov r13, 1")
	c.emit("inc r12")

	c.emitLabel(".parse_loop")
	c.emit("movzx r14, byte [r12]")
	c.emit("cmp r14b, '0'")
	c.emit("jb .done")
	c.emit("cmp r14b, '9'")
	c.emit("ja .done")
	c.emit("sub r14b, '0'")
	c.emit("imul r10, r11")
	c.emit("add r10, r14")
	c.emit("inc r12")
	c.emit("jmp .parse_loop")

	c.emitLabel(".done")
	c.emit("mov r15, r10")
	c.emit("test r13, r13")
	c.emit("jz .return")
	c.emit("neg r15")

	c.emitLabel(".return")
	c.emit("pop rdi")
	c.emit("pop rsi")
	c.emit("pop rdx")
	c.emit("pop rax")
	c.emit("pop rcx")
	c.emit("ret")
}

// sortedVarNames returns every variable name the emitter has registered,
// sorted. Neither the emitter nor its tests call it.
func sortedVarNames(c *context) []string {
	names := append([]string(nil), c.varOrder...)
	sort.Strings(names)
	return names
}
