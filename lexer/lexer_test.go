package lexer

import (
	"testing"

	"github.com/LilConsul/tinycompiled/token"
)

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func assertKinds(t *testing.T, src string, want ...token.Kind) {
	t.Helper()
	toks, err := Scan(src)
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", src, err)
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("Scan(%q) = %v, want %v", src, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Scan(%q)[%d] = %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestScanKeywordsCaseInsensitive(t *testing.T) {
	for _, src := range []string{"HALT", "halt", "HaLt"} {
		toks, err := Scan(src)
		if err != nil {
			t.Fatalf("Scan(%q): %v", src, err)
		}
		if toks[0].Kind != token.HALT {
			t.Errorf("Scan(%q)[0].Kind = %v, want HALT", src, toks[0].Kind)
		}
	}
}

func TestScanRegisterIsCaseSensitive(t *testing.T) {
	toks, err := Scan("R1")
	if err != nil || toks[0].Kind != token.REGISTER || toks[0].RegisterIndex() != 1 {
		t.Fatalf("Scan(\"R1\") = %+v, err %v", toks, err)
	}
	toks, err = Scan("r1")
	if err != nil {
		t.Fatalf("Scan(\"r1\"): %v", err)
	}
	if toks[0].Kind != token.IDENTIFIER {
		t.Errorf("Scan(\"r1\")[0].Kind = %v, want IDENTIFIER (lowercase r1 is not a register)", toks[0].Kind)
	}
}

func TestScanRelationalOperators(t *testing.T) {
	assertKinds(t, "== != > < >= <=",
		token.EQ, token.NEQ, token.GT, token.LT, token.GTE, token.LTE, token.EOF)
}

func TestScanBareBangIsError(t *testing.T) {
	if _, err := Scan("!"); err == nil {
		t.Fatal("expected error scanning bare '!'")
	}
}

func TestScanNumericBases(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"42", 42},
		{"-42", -42},
		{"0x2A", 42},
		{"0xff", 255},
		{"0b101010", 42},
		{"0", 0},
	}
	for _, c := range cases {
		toks, err := Scan(c.src)
		if err != nil {
			t.Fatalf("Scan(%q): %v", c.src, err)
		}
		if toks[0].Kind != token.NUMBER || toks[0].Int() != c.want {
			t.Errorf("Scan(%q) = %+v, want NUMBER(%d)", c.src, toks[0], c.want)
		}
	}
}

func TestScanNumericBoundaries(t *testing.T) {
	toks, err := Scan("9223372036854775807") // i64::MAX
	if err != nil || toks[0].Int() != 9223372036854775807 {
		t.Fatalf("i64::MAX scan failed: toks=%+v err=%v", toks, err)
	}
	toks, err = Scan("-9223372036854775808") // i64::MIN
	if err != nil || toks[0].Int() != -9223372036854775808 {
		t.Fatalf("i64::MIN scan failed: toks=%+v err=%v", toks, err)
	}
	if _, err := Scan("9223372036854775808"); err == nil {
		t.Fatal("expected overflow error one past i64::MAX")
	}
}

func TestScanMalformedNumberErrors(t *testing.T) {
	cases := []string{"0x", "0b", "-"}
	for _, src := range cases {
		if _, err := Scan(src); err == nil {
			t.Errorf("Scan(%q): expected error", src)
		}
	}
}

func TestScanMinusRequiresAdjacentDigit(t *testing.T) {
	// "- 1" is not a negative literal: '-' is not otherwise a token in
	// this language at the lexer level (§4.1 rule 6), so a bare '-' not
	// immediately followed by a digit is a lexical error.
	if _, err := Scan("- 1"); err == nil {
		t.Fatal("expected error for '-' not immediately followed by a digit")
	}
}

func TestScanIdentifierPreservesCase(t *testing.T) {
	toks, err := Scan("MyVar")
	if err != nil || toks[0].Kind != token.IDENTIFIER || toks[0].Ident() != "MyVar" {
		t.Fatalf("Scan(\"MyVar\") = %+v, err %v", toks, err)
	}
}

func TestScanCommentToEndOfLine(t *testing.T) {
	assertKinds(t, "HALT ; this is a comment\nNOP", token.HALT, token.NEWLINE, token.NOP, token.EOF)
}

func TestScanPositionsAreOneIndexed(t *testing.T) {
	toks, err := Scan("VAR x, 1\nPRINT x")
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range toks {
		if tok.Line < 1 || tok.Column < 1 {
			t.Fatalf("token %+v has a non-positive line or column", tok)
		}
	}
	// PRINT is on the second line.
	for _, tok := range toks {
		if tok.Kind == token.PRINT {
			if tok.Line != 2 {
				t.Errorf("PRINT line = %d, want 2", tok.Line)
			}
			return
		}
	}
	t.Fatal("PRINT token not found")
}

func TestScanUnrecognizedCharacterErrors(t *testing.T) {
	if _, err := Scan("@"); err == nil {
		t.Fatal("expected error scanning '@'")
	}
}

func TestScanEndsInEOF(t *testing.T) {
	toks, err := Scan("HALT")
	if err != nil {
		t.Fatal(err)
	}
	if last := toks[len(toks)-1]; last.Kind != token.EOF {
		t.Fatalf("last token = %v, want EOF", last.Kind)
	}
}
