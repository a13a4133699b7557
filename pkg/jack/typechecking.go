package jack

import "fmt"

// ----------------------------------------------------------------------------
// Jack Type Checker

// TypeChecker is a best-effort static checker: it verifies that every variable reference
// resolves, every call targets a known subroutine with a matching argument count, and
// every ObjectType names a known class. It does NOT attempt full type inference (Jack
// lets 'let' targets and expressions mix int/char freely, and the grammar gives no
// syntax to declare which fields an object type actually exposes), so a clean run is a
// strong signal but not a soundness guarantee — matching the "best effort" framing this
// checker is documented under.
type TypeChecker struct {
	program Program
	scopes  *ScopeTable

	className string
}

// NewTypeChecker returns a checker over program; program must contain every class the
// code under test references, except that classes it lacks are also looked up in
// StandardLibraryABI.
func NewTypeChecker(program Program) *TypeChecker {
	return &TypeChecker{program: program, scopes: NewScopeTable()}
}

// Check walks every class/subroutine in the program and reports the first error found.
func (tc *TypeChecker) Check() error {
	if len(tc.program) == 0 {
		return fmt.Errorf("the given program is empty or nil")
	}
	for name, class := range tc.program {
		if _, isStdlib := StandardLibraryABI[name]; isStdlib {
			// Standard library entries merged in from the ABI are bodiless signatures: there
			// is nothing to check but the calls made into them. A user class of the same name
			// (one that has statements) is still checked.
			bodiless := true
			for _, sub := range class.Subroutines.Entries() {
				bodiless = bodiless && len(sub.Statements) == 0
			}
			if bodiless {
				continue
			}
		}
		if err := tc.checkClass(class); err != nil {
			return fmt.Errorf("class %s: %w", name, err)
		}
	}
	return nil
}

func (tc *TypeChecker) checkClass(class Class) error {
	tc.className = class.Name
	tc.scopes.PushClassScope(class.Name)
	defer tc.scopes.PopClassScope()

	for _, field := range class.Fields.Entries() {
		if err := tc.checkType(field.Type); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
		if err := tc.scopes.RegisterVariable(field); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}

	for _, sub := range class.Subroutines.Entries() {
		if err := tc.checkSubroutine(sub); err != nil {
			return fmt.Errorf("subroutine %s: %w", sub.Name, err)
		}
	}
	return nil
}

func (tc *TypeChecker) checkSubroutine(sub Subroutine) error {
	tc.scopes.PushSubRoutineScope(sub.Name)
	defer tc.scopes.PopSubroutineScope()

	if sub.Kind == Constructor && sub.Return.Kind != ObjectType {
		return fmt.Errorf("constructor must return an object type, got %q", sub.Return.Kind)
	}

	if sub.Kind == Method {
		if err := tc.scopes.RegisterVariable(Variable{Name: "this", Kind: ArgumentVar, Type: DataType{Kind: ObjectType, ClassName: tc.className}}); err != nil {
			return err
		}
	}
	for _, arg := range sub.Arguments {
		if err := tc.checkType(arg.Type); err != nil {
			return fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		if err := tc.scopes.RegisterVariable(arg); err != nil {
			return fmt.Errorf("argument %s: %w", arg.Name, err)
		}
	}
	for _, local := range sub.Locals {
		if err := tc.checkType(local.Type); err != nil {
			return fmt.Errorf("local %s: %w", local.Name, err)
		}
		if err := tc.scopes.RegisterVariable(local); err != nil {
			return fmt.Errorf("local %s: %w", local.Name, err)
		}
	}

	for _, stmt := range sub.Statements {
		if err := tc.checkStatement(stmt); err != nil {
			return err
		}
	}
	if sub.Return.Kind != VoidType && !tc.hasReturnWithValue(sub.Statements) {
		return fmt.Errorf("subroutine declares return type %q but has no 'return' with a value", sub.Return.Kind)
	}
	return nil
}

// hasReturnWithValue reports whether any reachable return statement carries a value.
// Jack has no flow analysis requirement, so this is an existence check, not exhaustiveness.
func (tc *TypeChecker) hasReturnWithValue(statements []Statement) bool {
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case ReturnStmt:
			if s.Value != nil {
				return true
			}
		case IfStmt:
			if tc.hasReturnWithValue(s.Then) || tc.hasReturnWithValue(s.Else) {
				return true
			}
		case WhileStmt:
			if tc.hasReturnWithValue(s.Body) {
				return true
			}
		}
	}
	return false
}

// checkType validates that an ObjectType names a class this TypeChecker knows about
// (either the program being checked or the embedded standard library).
func (tc *TypeChecker) checkType(t DataType) error {
	if t.Kind != ObjectType {
		return nil
	}
	if _, ok := tc.program[t.ClassName]; ok {
		return nil
	}
	if _, ok := StandardLibraryABI[t.ClassName]; ok {
		return nil
	}
	return fmt.Errorf("unknown class %q", t.ClassName)
}

func (tc *TypeChecker) checkStatement(stmt Statement) error {
	switch s := stmt.(type) {
	case LetStmt:
		if _, _, err := tc.scopes.ResolveVariable(s.Name); err != nil {
			return err
		}
		if s.Index != nil {
			if err := tc.checkExpression(s.Index); err != nil {
				return err
			}
		}
		return tc.checkExpression(s.Value)

	case IfStmt:
		if err := tc.checkExpression(s.Cond); err != nil {
			return err
		}
		for _, inner := range s.Then {
			if err := tc.checkStatement(inner); err != nil {
				return err
			}
		}
		for _, inner := range s.Else {
			if err := tc.checkStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case WhileStmt:
		if err := tc.checkExpression(s.Cond); err != nil {
			return err
		}
		for _, inner := range s.Body {
			if err := tc.checkStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case DoStmt:
		return tc.checkExpression(s.Call)

	case ReturnStmt:
		if s.Value == nil {
			return nil
		}
		return tc.checkExpression(s.Value)

	default:
		return fmt.Errorf("unrecognized statement type %T", stmt)
	}
}

func (tc *TypeChecker) checkExpression(expr Expression) error {
	switch e := expr.(type) {
	case LiteralExpr:
		return nil

	case VarExpr:
		_, _, err := tc.scopes.ResolveVariable(e.Name)
		return err

	case IndexExpr:
		if _, _, err := tc.scopes.ResolveVariable(e.Name); err != nil {
			return err
		}
		return tc.checkExpression(e.Index)

	case ParenExpr:
		return tc.checkExpression(e.Inner)

	case UnaryExpr:
		return tc.checkExpression(e.Operand)

	case BinaryExpr:
		if err := tc.checkExpression(e.Lhs); err != nil {
			return err
		}
		return tc.checkExpression(e.Rhs)

	case CallExpr:
		return tc.checkCall(e)

	default:
		return fmt.Errorf("unrecognized expression type %T", expr)
	}
}

// checkCall verifies the callee resolves to a known subroutine and that the caller
// passed the right number of arguments (Jack has no default/variadic parameters).
func (tc *TypeChecker) checkCall(call CallExpr) error {
	for _, arg := range call.Args {
		if err := tc.checkExpression(arg); err != nil {
			return err
		}
	}

	className := call.Qualifier
	if className == "" {
		className = tc.className
	} else if _, variable, err := tc.scopes.ResolveVariable(call.Qualifier); err == nil {
		if variable.Type.Kind != ObjectType {
			return fmt.Errorf("cannot call %q on non-object variable %q", call.Name, call.Qualifier)
		}
		className = variable.Type.ClassName
	}

	class, ok := tc.program[className]
	if !ok {
		class, ok = StandardLibraryABI[className]
	}
	if !ok {
		return fmt.Errorf("call to unknown class %q", className)
	}

	sub, ok := class.Subroutines.Get(call.Name)
	if !ok {
		return fmt.Errorf("class %q has no subroutine %q", className, call.Name)
	}
	if len(sub.Arguments) != len(call.Args) {
		return fmt.Errorf("%s.%s expects %d argument(s), got %d", className, call.Name, len(sub.Arguments), len(call.Args))
	}
	return nil
}
