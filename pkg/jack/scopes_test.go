package jack_test

import (
	"testing"

	"github.com/nand2tetris-go/toolchain/pkg/jack"
)

func TestClassScope(t *testing.T) {
	test := func(st *jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		t.Helper()
		offset, variable, err := st.ResolveVariable(lookup)
		if fail {
			if err == nil {
				t.Errorf("expected lookup of '%s' to fail, got %+v", lookup, variable)
			}
			return
		}
		if err != nil {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable '%s', got %+v", lookup, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("without variable shadowing", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.CharType}})
		st.RegisterVariable(jack.Variable{Name: "test_field_2", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.CharType}})
		st.RegisterVariable(jack.Variable{Name: "test_static_2", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.BoolType}})

		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}}, 0, false)
		test(st, "test_static", jack.Variable{Name: "test_static", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.CharType}}, 0, false)
		test(st, "test_field_2", jack.Variable{Name: "test_field_2", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.CharType}}, 1, false)
		test(st, "test_static_2", jack.Variable{Name: "test_static_2", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.BoolType}}, 1, false)

		test(st, "unknown", jack.Variable{}, 0, true)
	})

	t.Run("redefining a name already registered in the same scope is a fatal error", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		if err := st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}}); err != nil {
			t.Fatalf("unexpected error on first registration: %v", err)
		}
		// Redefines the same name at the same (class) scope level, just under a
		// different kind; this must fail rather than silently shadow.
		if err := st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.CharType}}); err == nil {
			t.Fatalf("expected redefining 'test_field' in the same scope to fail, got none")
		}

		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}}, 0, false)
	})

	t.Run("PopClassScope clears both static and field", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")

		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})
		st.RegisterVariable(jack.Variable{Name: "test_static", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.CharType}})

		st.PopClassScope()

		// Unlike a per-field-only reset, statics do not outlive their declaring class:
		// the next class starts with a clean slate for both kinds.
		test(st, "test_field", jack.Variable{}, 0, true)
		test(st, "test_static", jack.Variable{}, 0, true)
	})

	t.Run("PushClassScope for a new class resets statics from the previous class", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("FirstClass")
		st.RegisterVariable(jack.Variable{Name: "leftover", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.IntType}})

		st.PushClassScope("SecondClass")
		test(st, "leftover", jack.Variable{}, 0, true)
	})
}

func TestSubroutineScope(t *testing.T) {
	test := func(st *jack.ScopeTable, lookup string, expectedVar jack.Variable, expectedOffset uint16, fail bool) {
		t.Helper()
		offset, variable, err := st.ResolveVariable(lookup)
		if fail {
			if err == nil {
				t.Errorf("expected lookup of '%s' to fail, got %+v", lookup, variable)
			}
			return
		}
		if err != nil {
			t.Fatalf("expected to find %s, got error: %v", lookup, err)
		}
		if variable != expectedVar {
			t.Errorf("expected to find variable '%s', got %+v", lookup, variable)
		}
		if offset != expectedOffset {
			t.Errorf("expected offset %d for variable '%s', got '%d'", expectedOffset, lookup, offset)
		}
	}

	t.Run("without variable shadowing", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		st.PushSubRoutineScope("testMethod")

		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.LocalVar, Type: jack.DataType{Kind: jack.IntType}})
		st.RegisterVariable(jack.Variable{Name: "test_arg", Kind: jack.ArgumentVar, Type: jack.DataType{Kind: jack.CharType}})

		test(st, "test_local", jack.Variable{Name: "test_local", Kind: jack.LocalVar, Type: jack.DataType{Kind: jack.IntType}}, 0, false)
		test(st, "test_arg", jack.Variable{Name: "test_arg", Kind: jack.ArgumentVar, Type: jack.DataType{Kind: jack.CharType}}, 0, false)
	})

	t.Run("inner scope shadows outer (class) scope", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		st.RegisterVariable(jack.Variable{Name: "shared", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})

		st.PushSubRoutineScope("testMethod")
		st.RegisterVariable(jack.Variable{Name: "shared", Kind: jack.LocalVar, Type: jack.DataType{Kind: jack.BoolType}})

		test(st, "shared", jack.Variable{Name: "shared", Kind: jack.LocalVar, Type: jack.DataType{Kind: jack.BoolType}}, 0, false)

		st.PopSubroutineScope()
		test(st, "shared", jack.Variable{Name: "shared", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}}, 0, false)
	})

	t.Run("PopSubroutineScope clears argument and local only", func(t *testing.T) {
		st := jack.NewScopeTable()
		st.PushClassScope("TestClass")
		st.RegisterVariable(jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})

		st.PushSubRoutineScope("testMethod")
		st.RegisterVariable(jack.Variable{Name: "test_local", Kind: jack.LocalVar, Type: jack.DataType{Kind: jack.CharType}})

		st.PopSubroutineScope()

		test(st, "test_local", jack.Variable{}, 0, true)
		test(st, "test_field", jack.Variable{Name: "test_field", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}}, 0, false)
	})
}

func TestScopeTracking(t *testing.T) {
	st := jack.NewScopeTable()
	if got := st.GetScope(); got != "Global" {
		t.Errorf("expected 'Global', got %q", got)
	}

	st.PushClassScope("TestClass")
	if got := st.GetScope(); got != "TestClass.Global" {
		t.Errorf("expected 'TestClass.Global', got %q", got)
	}

	st.PushSubRoutineScope("testMethod")
	if got := st.GetScope(); got != "TestClass.testMethod" {
		t.Errorf("expected 'TestClass.testMethod', got %q", got)
	}

	st.PopSubroutineScope()
	if got := st.GetScope(); got != "TestClass.Global" {
		t.Errorf("expected 'TestClass.Global' after popping subroutine scope, got %q", got)
	}

	st.PopClassScope()
	if got := st.GetScope(); got != "Global" {
		t.Errorf("expected 'Global' after popping class scope, got %q", got)
	}
}

func TestFieldCount(t *testing.T) {
	st := jack.NewScopeTable()
	st.PushClassScope("Point")
	st.RegisterVariable(jack.Variable{Name: "x", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})
	st.RegisterVariable(jack.Variable{Name: "y", Kind: jack.FieldVar, Type: jack.DataType{Kind: jack.IntType}})
	st.RegisterVariable(jack.Variable{Name: "count", Kind: jack.StaticVar, Type: jack.DataType{Kind: jack.IntType}})

	if got := st.FieldCount(); got != 2 {
		t.Errorf("expected field count 2, got %d", got)
	}
}
