package token

import (
	"strings"
	"testing"
)

func TestKeywordsAreUppercaseKeyed(t *testing.T) {
	for name, kind := range Keywords {
		if strings.ToUpper(name) != name {
			t.Fatalf("keyword table key %q is not already uppercase", name)
		}
		if kind == ILLEGAL {
			t.Fatalf("keyword %q mapped to ILLEGAL", name)
		}
	}
}

func TestTokenAccessorsPanicOnWrongKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Int() to panic on a non-NUMBER token")
		}
	}()
	tok := Token{Kind: IDENTIFIER, Value: "x"}
	_ = tok.Int()
}

func TestTokenString(t *testing.T) {
	tok := Token{Kind: NUMBER, Value: int64(42), Line: 3, Column: 7}
	got := tok.String()
	want := "NUMBER(42) 3:7"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
