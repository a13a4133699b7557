package jack

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustTokens(t *testing.T, source string) []Token {
	t.Helper()
	lexer := NewLexer(strings.NewReader(source))
	tokens, err := lexer.Tokenize()
	if err != nil {
		t.Fatalf("failed to tokenize fixture: %v", err)
	}
	return tokens
}

func TestParserParseClass(t *testing.T) {
	source := `
class Point {
	field int x, y;
	static int count;

	constructor Point new(int ax, int ay) {
		let x = ax;
		let y = ay;
		return this;
	}

	method int getX() {
		return x;
	}

	method void moveTo(int nx, int ny) {
		if (nx > 0) {
			let x = nx;
		} else {
			let x = 0;
		}
		while (y < ny) {
			let y = y + 1;
		}
		do Output.printInt(x);
		return;
	}
}
`
	parser, err := NewParser(strings.NewReader(source))
	if err != nil {
		t.Fatalf("unexpected tokenize error: %v", err)
	}
	class, err := parser.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if class.Name != "Point" {
		t.Fatalf("expected class name 'Point', got %q", class.Name)
	}
	if class.Fields.Size() != 3 {
		t.Fatalf("expected 3 fields, got %d", class.Fields.Size())
	}
	x, ok := class.Fields.Get("x")
	if !ok || x.Kind != FieldVar || x.Type.Kind != IntType {
		t.Errorf("expected field 'x' to be a FieldVar of type int, got %+v (ok=%v)", x, ok)
	}
	count, ok := class.Fields.Get("count")
	if !ok || count.Kind != StaticVar {
		t.Errorf("expected 'count' to be a StaticVar, got %+v (ok=%v)", count, ok)
	}

	if class.Subroutines.Size() != 3 {
		t.Fatalf("expected 3 subroutines, got %d", class.Subroutines.Size())
	}

	ctor, ok := class.Subroutines.Get("new")
	if !ok {
		t.Fatalf("expected a 'new' constructor")
	}
	if ctor.Kind != Constructor || ctor.Return.Kind != ObjectType || ctor.Return.ClassName != "Point" {
		t.Errorf("unexpected constructor shape: %+v", ctor)
	}
	if len(ctor.Arguments) != 2 {
		t.Fatalf("expected 2 constructor arguments, got %d", len(ctor.Arguments))
	}
	wantLet := LetStmt{Name: "x", Value: VarExpr{Name: "ax"}}
	if diff := cmp.Diff(wantLet, ctor.Statements[0]); diff != "" {
		t.Errorf("first constructor statement mismatch (-want +got):\n%s", diff)
	}
	if _, ok := ctor.Statements[2].(ReturnStmt); !ok {
		t.Errorf("expected the 3rd constructor statement to be a ReturnStmt, got %T", ctor.Statements[2])
	}

	moveTo, ok := class.Subroutines.Get("moveTo")
	if !ok {
		t.Fatalf("expected a 'moveTo' method")
	}
	if moveTo.Kind != Method || moveTo.Return.Kind != VoidType {
		t.Errorf("unexpected moveTo shape: %+v", moveTo)
	}
	if len(moveTo.Statements) != 3 {
		t.Fatalf("expected 3 statements in moveTo, got %d", len(moveTo.Statements))
	}

	ifStmt, ok := moveTo.Statements[0].(IfStmt)
	if !ok {
		t.Fatalf("expected an IfStmt, got %T", moveTo.Statements[0])
	}
	wantCond := BinaryExpr{Op: GreatThan, Lhs: VarExpr{Name: "nx"}, Rhs: LiteralExpr{Kind: IntLiteral, Value: "0"}}
	if diff := cmp.Diff(wantCond, ifStmt.Cond); diff != "" {
		t.Errorf("if condition mismatch (-want +got):\n%s", diff)
	}
	if len(ifStmt.Then) != 1 || len(ifStmt.Else) != 1 {
		t.Errorf("expected both branches to hold exactly one statement, got then=%d else=%d", len(ifStmt.Then), len(ifStmt.Else))
	}

	whileStmt, ok := moveTo.Statements[1].(WhileStmt)
	if !ok {
		t.Fatalf("expected a WhileStmt, got %T", moveTo.Statements[1])
	}
	wantWhileCond := BinaryExpr{Op: LessThan, Lhs: VarExpr{Name: "y"}, Rhs: VarExpr{Name: "ny"}}
	if diff := cmp.Diff(wantWhileCond, whileStmt.Cond); diff != "" {
		t.Errorf("while condition mismatch (-want +got):\n%s", diff)
	}

	doStmt, ok := moveTo.Statements[2].(DoStmt)
	if !ok {
		t.Fatalf("expected a DoStmt, got %T", moveTo.Statements[2])
	}
	wantCall := CallExpr{Qualifier: "Output", Name: "printInt", Args: []Expression{VarExpr{Name: "x"}}}
	if diff := cmp.Diff(wantCall, doStmt.Call); diff != "" {
		t.Errorf("do-call mismatch (-want +got):\n%s", diff)
	}
}

func TestParserExpressionForms(t *testing.T) {
	test := func(t *testing.T, source string, want Expression) {
		t.Helper()
		tokens := mustTokens(t, source)
		parser := NewParserFromTokens(tokens)
		got, err := parser.parseExpression()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}

	t.Run("left-to-right, no precedence", func(t *testing.T) {
		test(t, "1 + 2 * 3", BinaryExpr{
			Op:  Multiply,
			Lhs: BinaryExpr{Op: Plus, Lhs: LiteralExpr{Kind: IntLiteral, Value: "1"}, Rhs: LiteralExpr{Kind: IntLiteral, Value: "2"}},
			Rhs: LiteralExpr{Kind: IntLiteral, Value: "3"},
		})
	})

	t.Run("parenthesized grouping", func(t *testing.T) {
		test(t, "(1 + 2) * 3", BinaryExpr{
			Op:  Multiply,
			Lhs: ParenExpr{Inner: BinaryExpr{Op: Plus, Lhs: LiteralExpr{Kind: IntLiteral, Value: "1"}, Rhs: LiteralExpr{Kind: IntLiteral, Value: "2"}}},
			Rhs: LiteralExpr{Kind: IntLiteral, Value: "3"},
		})
	})

	t.Run("unary negation and not", func(t *testing.T) {
		test(t, "-x", UnaryExpr{Op: Negation, Operand: VarExpr{Name: "x"}})
		test(t, "~flag", UnaryExpr{Op: BoolNot, Operand: VarExpr{Name: "flag"}})
	})

	t.Run("array index", func(t *testing.T) {
		test(t, "arr[i + 1]", IndexExpr{Name: "arr", Index: BinaryExpr{Op: Plus, Lhs: VarExpr{Name: "i"}, Rhs: LiteralExpr{Kind: IntLiteral, Value: "1"}}})
	})

	t.Run("unqualified call", func(t *testing.T) {
		test(t, "helper(1, x)", CallExpr{Name: "helper", Args: []Expression{
			LiteralExpr{Kind: IntLiteral, Value: "1"}, VarExpr{Name: "x"},
		}})
	})

	t.Run("qualified call", func(t *testing.T) {
		test(t, "Memory.peek(addr)", CallExpr{Qualifier: "Memory", Name: "peek", Args: []Expression{VarExpr{Name: "addr"}}})
	})

	t.Run("keyword constants", func(t *testing.T) {
		test(t, "true", LiteralExpr{Kind: TrueLiteral})
		test(t, "false", LiteralExpr{Kind: FalseLiteral})
		test(t, "null", LiteralExpr{Kind: NullLiteral})
		test(t, "this", LiteralExpr{Kind: ThisLiteral})
	})
}

func TestParserRejectsTrailingInput(t *testing.T) {
	parser, err := NewParser(strings.NewReader("class A {} class B {}"))
	if err != nil {
		t.Fatalf("unexpected tokenize error: %v", err)
	}
	if _, err := parser.Parse(); err == nil {
		t.Fatal("expected an error for trailing input after the first class declaration")
	}
}
