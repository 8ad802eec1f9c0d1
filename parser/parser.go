// Package parser implements the TC recursive-descent parser: single
// token lookahead, no backtracking, dispatching on the first non-
// newline token of a statement via a fixed keyword-to-handler mapping
// (§4.2).
package parser

import (
	"github.com/LilConsul/tinycompiled/ast"
	"github.com/LilConsul/tinycompiled/diag"
	"github.com/LilConsul/tinycompiled/token"
)

type parser struct {
	toks []token.Token
	pos  int
}

// Parse consumes a token sequence (as produced by lexer.Scan, always
// EOF-terminated) and produces a Program, or the first syntactic error
// encountered. Recovery is not attempted (§4.2, §7): the first error
// aborts parsing and no partial AST is returned.
func Parse(toks []token.Token) (*ast.Program, error) {
	p := &parser{toks: toks}
	stmts, err := p.parseBody(nil)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != token.EOF {
		return nil, p.errorf("unexpected trailing token %s", p.cur().Kind)
	}
	return &ast.Program{Statements: stmts}, nil
}

func (p *parser) cur() token.Token {
	return p.toks[p.pos]
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return diag.At(t.Line, t.Column, format, args...)
}

// skipNewlines consumes a run of zero or more NEWLINE tokens. The
// scanner emits one NEWLINE per source line unconditionally; collapsing
// runs of blank lines into a single statement boundary is this stage's
// responsibility, per the convention §4.1 leaves open.
func (p *parser) skipNewlines() {
	for p.cur().Kind == token.NEWLINE {
		p.advance()
	}
}

func (p *parser) expect(kind token.Kind) (token.Token, error) {
	if p.cur().Kind != kind {
		return token.Token{}, p.errorf("expected %s, got %s", kind, p.cur().Kind)
	}
	return p.advance(), nil
}

func (p *parser) expectRegister() (int, error) {
	t, err := p.expect(token.REGISTER)
	if err != nil {
		return 0, err
	}
	return t.RegisterIndex(), nil
}

func (p *parser) expectIdentifier() (string, error) {
	t, err := p.expect(token.IDENTIFIER)
	if err != nil {
		return "", err
	}
	return t.Ident(), nil
}

func (p *parser) expectNumber() (int64, error) {
	t, err := p.expect(token.NUMBER)
	if err != nil {
		return 0, err
	}
	return t.Int(), nil
}

// untilSet is the set of token kinds that terminate parseBody without
// being consumed by it; the caller consumes its specific terminator.
type untilSet map[token.Kind]bool

func until(kinds ...token.Kind) untilSet {
	s := make(untilSet, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// parseBody reads statements until the current token is EOF or a
// member of stop, following the parse_body(until) pattern of §4.2: a
// single shared block-reading helper parameterized by each caller's
// specific terminator set (e.g. {ENDIF, ELSE} for IF's then-branch).
func (p *parser) parseBody(stop untilSet) ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	for {
		p.skipNewlines()
		if p.cur().Kind == token.EOF {
			return stmts, nil
		}
		if stop != nil && stop[p.cur().Kind] {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseStatement dispatches on the current token's kind via the fixed
// mapping of §4.2.
func (p *parser) parseStatement() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.VAR:
		return p.parseVarDecl()
	case token.LOAD:
		return p.parseLoad()
	case token.SET:
		return p.parseSet()
	case token.MOVE:
		return p.parseMove()
	case token.ADD, token.SUB, token.MUL, token.DIV:
		return p.parseBinaryArith()
	case token.INC, token.DEC:
		return p.parseUnaryArith()
	case token.AND, token.OR, token.XOR:
		return p.parseBinaryBitwise()
	case token.NOT:
		return p.parseNot()
	case token.SHL, token.SHR:
		return p.parseShift()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseFor()
	case token.LOOP:
		return p.parseLoop()
	case token.REPEAT:
		return p.parseRepeat()
	case token.FUNC:
		return p.parseFuncDef()
	case token.CALL:
		return p.parseCall()
	case token.RET:
		return p.parseReturn()
	case token.PUSH:
		return p.parsePush()
	case token.POP:
		return p.parsePop()
	case token.PRINT:
		return p.parsePrint()
	case token.INPUT:
		return p.parseInput()
	case token.HALT:
		p.advance()
		return &ast.Halt{}, nil
	case token.NOP:
		p.advance()
		return &ast.Nop{}, nil
	default:
		return nil, p.errorf("unexpected token %s at start of statement", p.cur().Kind)
	}
}

// parseOperand expects one of {REGISTER, IDENTIFIER, NUMBER} and
// returns the corresponding Operand variant (§4.2).
func (p *parser) parseOperand() (ast.Operand, error) {
	switch p.cur().Kind {
	case token.REGISTER:
		return ast.Reg(p.advance().RegisterIndex()), nil
	case token.IDENTIFIER:
		return ast.Ident(p.advance().Ident()), nil
	case token.NUMBER:
		return ast.Imm(p.advance().Int()), nil
	default:
		return ast.Operand{}, p.errorf("expected register, identifier, or number, got %s", p.cur().Kind)
	}
}

// parseRegOrImm restricts parseOperand's result to register or
// immediate, the shape SET's source and arithmetic's right-hand operand
// require.
func (p *parser) parseRegOrImm() (ast.Operand, error) {
	switch p.cur().Kind {
	case token.REGISTER:
		return ast.Reg(p.advance().RegisterIndex()), nil
	case token.NUMBER:
		return ast.Imm(p.advance().Int()), nil
	default:
		return ast.Operand{}, p.errorf("expected register or number, got %s", p.cur().Kind)
	}
}

// parseRegOrIdent restricts parseOperand's result to register or
// identifier, the shape INC/DEC/INPUT targets require.
func (p *parser) parseRegOrIdent() (ast.Operand, error) {
	switch p.cur().Kind {
	case token.REGISTER:
		return ast.Reg(p.advance().RegisterIndex()), nil
	case token.IDENTIFIER:
		return ast.Ident(p.advance().Ident()), nil
	default:
		return ast.Operand{}, p.errorf("expected register or identifier, got %s", p.cur().Kind)
	}
}

func relOpFor(kind token.Kind) (ast.RelOp, bool) {
	switch kind {
	case token.EQ:
		return ast.RelEQ, true
	case token.NEQ:
		return ast.RelNEQ, true
	case token.GT:
		return ast.RelGT, true
	case token.LT:
		return ast.RelLT, true
	case token.GTE:
		return ast.RelGTE, true
	case token.LTE:
		return ast.RelLTE, true
	default:
		return 0, false
	}
}

// parseCondition parses left operand (register or identifier) ->
// relational operator -> right operand (register, identifier, or
// number), per §4.2. A numeric left operand is rejected here (§7's
// "condition left-operand is a number" syntactic error).
func (p *parser) parseCondition() (ast.Condition, error) {
	if p.cur().Kind == token.NUMBER {
		return ast.Condition{}, p.errorf("condition's left operand must be a register or identifier, not a number")
	}
	left, err := p.parseRegOrIdent()
	if err != nil {
		return ast.Condition{}, err
	}
	op, ok := relOpFor(p.cur().Kind)
	if !ok {
		return ast.Condition{}, p.errorf("expected relational operator, got %s", p.cur().Kind)
	}
	p.advance()
	right, err := p.parseOperand()
	if err != nil {
		return ast.Condition{}, err
	}
	return ast.Condition{Left: left, Op: op, Right: right}, nil
}

func (p *parser) parseVarDecl() (ast.Stmt, error) {
	p.advance() // VAR
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{Name: name}
	if p.cur().Kind == token.COMMA {
		p.advance()
		v, err := p.expectNumber()
		if err != nil {
			return nil, err
		}
		decl.Init = &v
	}
	return decl, nil
}

func (p *parser) parseLoad() (ast.Stmt, error) {
	p.advance() // LOAD
	dest, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ast.Load{DestReg: dest, Src: src}, nil
}

func (p *parser) parseSet() (ast.Stmt, error) {
	p.advance() // SET
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.parseRegOrImm()
	if err != nil {
		return nil, err
	}
	return &ast.Set{DestName: name, Src: src}, nil
}

func (p *parser) parseMove() (ast.Stmt, error) {
	p.advance() // MOVE
	dest, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	return &ast.Move{DestReg: dest, SrcReg: src}, nil
}

func (p *parser) parseBinaryArith() (ast.Stmt, error) {
	var op ast.ArithOp
	switch p.cur().Kind {
	case token.ADD:
		op = ast.ArithAdd
	case token.SUB:
		op = ast.ArithSub
	case token.MUL:
		op = ast.ArithMul
	case token.DIV:
		op = ast.ArithDiv
	}
	p.advance()
	dest, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	left, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	right, err := p.parseRegOrImm()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryArith{Op: op, DestReg: dest, LeftReg: left, Right: right}, nil
}

func (p *parser) parseUnaryArith() (ast.Stmt, error) {
	op := ast.UnaryInc
	if p.cur().Kind == token.DEC {
		op = ast.UnaryDec
	}
	p.advance()
	target, err := p.parseRegOrIdent()
	if err != nil {
		return nil, err
	}
	return &ast.UnaryArith{Op: op, Target: target}, nil
}

func (p *parser) parseBinaryBitwise() (ast.Stmt, error) {
	var op ast.BitwiseOp
	switch p.cur().Kind {
	case token.AND:
		op = ast.BitwiseAnd
	case token.OR:
		op = ast.BitwiseOr
	case token.XOR:
		op = ast.BitwiseXor
	}
	p.advance()
	dest, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	left, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	right, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryBitwise{Op: op, DestReg: dest, LeftReg: left, RightReg: right}, nil
}

func (p *parser) parseNot() (ast.Stmt, error) {
	p.advance() // NOT
	reg, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	return &ast.Not{Reg: reg}, nil
}

func (p *parser) parseShift() (ast.Stmt, error) {
	op := ast.ShiftLeft
	if p.cur().Kind == token.SHR {
		op = ast.ShiftRight
	}
	p.advance()
	dest, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	src, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	count, err := p.expectNumber()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > 63 {
		return nil, p.errorf("shift count must be in 0..63, got %d", count)
	}
	return &ast.Shift{Op: op, DestReg: dest, SrcReg: src, Count: count}, nil
}

func (p *parser) parseIf() (ast.Stmt, error) {
	p.advance() // IF
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody(until(token.ENDIF, token.ELSE))
	if err != nil {
		return nil, err
	}
	stmt := &ast.If{Cond: cond, Then: then}
	if p.cur().Kind == token.ELSE {
		p.advance()
		elseBody, err := p.parseBody(until(token.ENDIF))
		if err != nil {
			return nil, err
		}
		stmt.Else = elseBody
	}
	if _, err := p.expect(token.ENDIF); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseWhile() (ast.Stmt, error) {
	p.advance() // WHILE
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(until(token.ENDWHILE))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDWHILE); err != nil {
		return nil, err
	}
	return &ast.While{Cond: cond, Body: body}, nil
}

// parseFor parses FOR identifier FROM integer TO integer (STEP
// integer)? newline body ENDFOR (§4.2). STEP defaults to +1; a literal
// zero step is rejected (§3.5's step != 0 invariant).
func (p *parser) parseFor() (ast.Stmt, error) {
	p.advance() // FOR
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.FROM); err != nil {
		return nil, err
	}
	start, err := p.expectNumber()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.TO); err != nil {
		return nil, err
	}
	end, err := p.expectNumber()
	if err != nil {
		return nil, err
	}
	step := int64(1)
	if p.cur().Kind == token.STEP {
		p.advance()
		step, err = p.expectNumber()
		if err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, p.errorf("FOR step must not be zero")
		}
	}
	body, err := p.parseBody(until(token.ENDFOR))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDFOR); err != nil {
		return nil, err
	}
	return &ast.For{Var: name, Start: start, End: end, Step: step, Body: body}, nil
}

func (p *parser) parseLoop() (ast.Stmt, error) {
	p.advance() // LOOP
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.COMMA); err != nil {
		return nil, err
	}
	limit, err := p.expectNumber()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(until(token.ENDLOOP))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDLOOP); err != nil {
		return nil, err
	}
	return &ast.LoopStmt{CounterName: name, Limit: limit, Body: body}, nil
}

// parseRepeat parses REPEAT body UNTIL cond: the body runs at least
// once and is read before the condition, so there is no lookahead
// terminator to stop on besides UNTIL itself.
func (p *parser) parseRepeat() (ast.Stmt, error) {
	p.advance() // REPEAT
	body, err := p.parseBody(until(token.UNTIL))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.UNTIL); err != nil {
		return nil, err
	}
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	return &ast.RepeatStmt{Body: body, Cond: cond}, nil
}

func (p *parser) parseFuncDef() (ast.Stmt, error) {
	p.advance() // FUNC
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(until(token.ENDFUNC))
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ENDFUNC); err != nil {
		return nil, err
	}
	return &ast.FuncDef{Name: name, Body: body}, nil
}

func (p *parser) parseCall() (ast.Stmt, error) {
	p.advance() // CALL
	name, err := p.expectIdentifier()
	if err != nil {
		return nil, err
	}
	return &ast.Call{Name: name}, nil
}

func (p *parser) parseReturn() (ast.Stmt, error) {
	p.advance() // RET
	if p.cur().Kind == token.REGISTER {
		reg := p.advance().RegisterIndex()
		return &ast.Return{Value: &reg}, nil
	}
	return &ast.Return{}, nil
}

func (p *parser) parsePush() (ast.Stmt, error) {
	p.advance() // PUSH
	reg, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	return &ast.Push{Reg: reg}, nil
}

func (p *parser) parsePop() (ast.Stmt, error) {
	p.advance() // POP
	reg, err := p.expectRegister()
	if err != nil {
		return nil, err
	}
	return &ast.Pop{Reg: reg}, nil
}

func (p *parser) parsePrint() (ast.Stmt, error) {
	p.advance() // PRINT
	val, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ast.Print{Value: val}, nil
}

func (p *parser) parseInput() (ast.Stmt, error) {
	p.advance() // INPUT
	target, err := p.parseRegOrIdent()
	if err != nil {
		return nil, err
	}
	return &ast.Input{Target: target}, nil
}
