package jack

import (
	"fmt"

	"github.com/nand2tetris-go/toolchain/pkg/vm"
)

// ----------------------------------------------------------------------------
// Jack Lowerer

// segmentByKind maps a Jack-level VarKind to the VM segment that backs it. Static/field
// are class-scoped (field is relative to the object pointed at by 'this'); argument/local
// are subroutine-scoped frame slots.
var segmentByKind = map[VarKind]vm.SegmentType{
	StaticVar:   vm.Static,
	FieldVar:    vm.This,
	ArgumentVar: vm.Argument,
	LocalVar:    vm.Local,
}

var binOpToArith = map[BinOp]vm.ArithOpType{
	Plus:      vm.Add,
	Minus:     vm.Sub,
	BoolAnd:   vm.And,
	BoolOr:    vm.Or,
	LessThan:  vm.Lt,
	GreatThan: vm.Gt,
	Equal:     vm.Eq,
}

// Lowerer translates a parsed Class into one VM Module holding all of its subroutines,
// each introduced by a "function ClassName.subroutineName n" declaration as the VM/Hack
// pipeline downstream expects.
//
// Per-instance counters (nIf, nWhile) keep generated label names unique; they are reset
// at the start of every subroutine, since labels are function-scoped once they reach the
// VM/Asm stages.
type Lowerer struct {
	scopes *ScopeTable

	className string
	nIf       uint
	nWhile    uint
}

// NewLowerer returns a ready-to-use Lowerer.
func NewLowerer() *Lowerer {
	return &Lowerer{scopes: NewScopeTable()}
}

// Lower translates class into a single VM Module holding every subroutine's code, one
// FuncDecl after another — matching the nand2tetris convention that each Jack class
// compiles to exactly one .vm file (itself a flat sequence of function declarations).
func (l *Lowerer) Lower(class Class) (vm.Module, error) {
	l.className = class.Name
	l.scopes.PushClassScope(class.Name)
	defer l.scopes.PopClassScope()

	for _, field := range class.Fields.Entries() {
		if err := l.scopes.RegisterVariable(field); err != nil {
			return nil, fmt.Errorf("class %s: field %s: %w", class.Name, field.Name, err)
		}
	}

	module := vm.Module{}
	for _, sub := range class.Subroutines.Entries() {
		ops, err := l.lowerSubroutine(sub)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class.Name, err)
		}
		module = append(module, ops...)
	}
	return module, nil
}

// lowerSubroutine emits the calling-convention prologue for sub.Kind and then its body.
func (l *Lowerer) lowerSubroutine(sub Subroutine) (vm.Module, error) {
	l.scopes.PushSubRoutineScope(sub.Name)
	defer l.scopes.PopSubroutineScope()
	l.nIf, l.nWhile = 0, 0

	if sub.Kind == Method {
		// A method's implicit 'this' argument is argument 0; every other argument shifts up one.
		if err := l.scopes.RegisterVariable(Variable{Name: "this", Kind: ArgumentVar, Type: DataType{Kind: ObjectType, ClassName: l.className}}); err != nil {
			return nil, err
		}
	}
	for _, arg := range sub.Arguments {
		if err := l.scopes.RegisterVariable(arg); err != nil {
			return nil, fmt.Errorf("subroutine %s: argument %s: %w", sub.Name, arg.Name, err)
		}
	}
	for _, local := range sub.Locals {
		if err := l.scopes.RegisterVariable(local); err != nil {
			return nil, fmt.Errorf("subroutine %s: local %s: %w", sub.Name, local.Name, err)
		}
	}

	module := vm.Module{vm.FuncDecl{Name: fmt.Sprintf("%s.%s", l.className, sub.Name), NLocal: uint8(len(sub.Locals))}}

	switch sub.Kind {
	case Constructor:
		// Allocate the object and point 'this' at it before running the body.
		module = append(module,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(l.scopes.FieldCount())},
			vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	case Method:
		// Point 'this' at the object the caller passed as argument 0.
		module = append(module,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		)
	}

	for _, stmt := range sub.Statements {
		ops, err := l.lowerStatement(stmt)
		if err != nil {
			return nil, fmt.Errorf("subroutine %s: %w", sub.Name, err)
		}
		module = append(module, ops...)
	}

	return module, nil
}

// ----------------------------------------------------------------------------
// Statements

func (l *Lowerer) lowerStatement(stmt Statement) (vm.Module, error) {
	switch s := stmt.(type) {
	case LetStmt:
		return l.lowerLet(s)
	case IfStmt:
		return l.lowerIf(s)
	case WhileStmt:
		return l.lowerWhile(s)
	case DoStmt:
		return l.lowerDo(s)
	case ReturnStmt:
		return l.lowerReturn(s)
	default:
		return nil, fmt.Errorf("unrecognized statement type %T", stmt)
	}
}

func (l *Lowerer) lowerLet(s LetStmt) (vm.Module, error) {
	if s.Index == nil {
		value, err := l.lowerExpression(s.Value)
		if err != nil {
			return nil, err
		}
		_, variable, err := l.scopes.ResolveVariable(s.Name)
		if err != nil {
			return nil, err
		}
		store, err := l.storeVariable(variable)
		if err != nil {
			return nil, err
		}
		return append(value, store...), nil
	}

	// 'let name[index] = value': the target address (arr + index) is evaluated before
	// the value, so side effects in the index expression run before those in the value
	// expression. The canonical trick is to stash 'value' in temp 0 while the address
	// occupies 'that', since storing through the address needs the stack for its own
	// arithmetic.
	address, err := l.lowerIndexAddress(s.Name, s.Index)
	if err != nil {
		return nil, err
	}
	value, err := l.lowerExpression(s.Value)
	if err != nil {
		return nil, err
	}

	module := append(vm.Module{}, address...)
	module = append(module, value...)
	module = append(module,
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
	)
	return module, nil
}

func (l *Lowerer) lowerIf(s IfStmt) (vm.Module, error) {
	n := l.nIf
	l.nIf++
	elseLabel := fmt.Sprintf("IF_ELSE_%d", n)
	endLabel := fmt.Sprintf("IF_END_%d", n)

	cond, err := l.lowerExpression(s.Cond)
	if err != nil {
		return nil, err
	}
	thenOps, err := l.lowerStatements(s.Then)
	if err != nil {
		return nil, err
	}
	elseOps, err := l.lowerStatements(s.Else)
	if err != nil {
		return nil, err
	}

	module := append(vm.Module{}, cond...)
	module = append(module, vm.ArithmeticOp{Operation: vm.Not}, vm.GotoOp{Jump: vm.IfGoto, Label: elseLabel})
	module = append(module, thenOps...)
	module = append(module, vm.GotoOp{Jump: vm.Goto, Label: endLabel})
	module = append(module, vm.LabelDecl{Name: elseLabel})
	module = append(module, elseOps...)
	module = append(module, vm.LabelDecl{Name: endLabel})
	return module, nil
}

func (l *Lowerer) lowerWhile(s WhileStmt) (vm.Module, error) {
	n := l.nWhile
	l.nWhile++
	startLabel := fmt.Sprintf("WHILE_START_%d", n)
	endLabel := fmt.Sprintf("WHILE_END_%d", n)

	cond, err := l.lowerExpression(s.Cond)
	if err != nil {
		return nil, err
	}
	body, err := l.lowerStatements(s.Body)
	if err != nil {
		return nil, err
	}

	module := vm.Module{vm.LabelDecl{Name: startLabel}}
	module = append(module, cond...)
	module = append(module, vm.ArithmeticOp{Operation: vm.Not}, vm.GotoOp{Jump: vm.IfGoto, Label: endLabel})
	module = append(module, body...)
	module = append(module, vm.GotoOp{Jump: vm.Goto, Label: startLabel})
	module = append(module, vm.LabelDecl{Name: endLabel})
	return module, nil
}

func (l *Lowerer) lowerDo(s DoStmt) (vm.Module, error) {
	call, err := l.lowerCall(s.Call)
	if err != nil {
		return nil, err
	}
	// 'do' discards the return value every Jack subroutine produces (even void ones,
	// which push a dummy 0).
	return append(call, vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0}), nil
}

func (l *Lowerer) lowerReturn(s ReturnStmt) (vm.Module, error) {
	if s.Value == nil {
		return vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ReturnOp{},
		}, nil
	}

	value, err := l.lowerExpression(s.Value)
	if err != nil {
		return nil, err
	}
	return append(value, vm.ReturnOp{}), nil
}

func (l *Lowerer) lowerStatements(statements []Statement) (vm.Module, error) {
	module := vm.Module{}
	for _, stmt := range statements {
		ops, err := l.lowerStatement(stmt)
		if err != nil {
			return nil, err
		}
		module = append(module, ops...)
	}
	return module, nil
}

// ----------------------------------------------------------------------------
// Expressions

func (l *Lowerer) lowerExpression(expr Expression) (vm.Module, error) {
	switch e := expr.(type) {
	case LiteralExpr:
		return l.lowerLiteral(e)
	case VarExpr:
		_, variable, err := l.scopes.ResolveVariable(e.Name)
		if err != nil {
			return nil, err
		}
		return l.loadVariable(variable)
	case IndexExpr:
		address, err := l.lowerIndexAddress(e.Name, e.Index)
		if err != nil {
			return nil, err
		}
		return append(address,
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
		), nil
	case ParenExpr:
		return l.lowerExpression(e.Inner)
	case UnaryExpr:
		operand, err := l.lowerExpression(e.Operand)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case Negation:
			return append(operand, vm.ArithmeticOp{Operation: vm.Neg}), nil
		case BoolNot:
			return append(operand, vm.ArithmeticOp{Operation: vm.Not}), nil
		default:
			return nil, fmt.Errorf("unrecognized unary operator %q", e.Op)
		}
	case BinaryExpr:
		return l.lowerBinary(e)
	case CallExpr:
		return l.lowerCall(e)
	default:
		return nil, fmt.Errorf("unrecognized expression type %T", expr)
	}
}

func (l *Lowerer) lowerLiteral(e LiteralExpr) (vm.Module, error) {
	switch e.Kind {
	case IntLiteral:
		value, err := parseUint16(e.Value)
		if err != nil {
			return nil, err
		}
		return vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: value}}, nil

	case StringLiteral:
		return l.lowerStringLiteral(e.Value), nil

	case TrueLiteral:
		// true = -1 = ~0, built from 'push constant 0' followed by a bitwise not.
		return vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
			vm.ArithmeticOp{Operation: vm.Not},
		}, nil
	case FalseLiteral, NullLiteral:
		return vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0}}, nil
	case ThisLiteral:
		return vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0}}, nil

	default:
		return nil, fmt.Errorf("unrecognized literal kind %q", e.Kind)
	}
}

// lowerStringLiteral expands a string constant into a String.new/appendChar call chain,
// the only representation the Jack OS gives strings (there's no literal-pool instruction
// in the VM language).
func (l *Lowerer) lowerStringLiteral(value string) vm.Module {
	module := vm.Module{
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(len(value))},
		vm.FuncCallOp{Name: "String.new", NArgs: 1},
	}
	for _, r := range value {
		module = append(module,
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16(r)},
			vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		)
	}
	return module
}

func (l *Lowerer) lowerBinary(e BinaryExpr) (vm.Module, error) {
	lhs, err := l.lowerExpression(e.Lhs)
	if err != nil {
		return nil, err
	}
	rhs, err := l.lowerExpression(e.Rhs)
	if err != nil {
		return nil, err
	}

	module := append(vm.Module{}, lhs...)
	module = append(module, rhs...)

	switch e.Op {
	case Multiply:
		return append(module, vm.FuncCallOp{Name: "Math.multiply", NArgs: 2}), nil
	case Divide:
		return append(module, vm.FuncCallOp{Name: "Math.divide", NArgs: 2}), nil
	default:
		arith, ok := binOpToArith[e.Op]
		if !ok {
			return nil, fmt.Errorf("unrecognized binary operator %q", e.Op)
		}
		return append(module, vm.ArithmeticOp{Operation: arith}), nil
	}
}

// lowerIndexAddress computes and leaves on the stack the address name[index] resolves
// to, without dereferencing it (the caller decides whether that's a read or a write).
func (l *Lowerer) lowerIndexAddress(name string, index Expression) (vm.Module, error) {
	_, variable, err := l.scopes.ResolveVariable(name)
	if err != nil {
		return nil, err
	}
	base, err := l.loadVariable(variable)
	if err != nil {
		return nil, err
	}
	offset, err := l.lowerExpression(index)
	if err != nil {
		return nil, err
	}

	module := append(vm.Module{}, base...)
	module = append(module, offset...)
	module = append(module, vm.ArithmeticOp{Operation: vm.Add})
	return module, nil
}

// lowerCall resolves both call forms: a bare name is always a same-class method call
// (implicit 'this' receiver); a qualified name is either
// a method call through a variable (receiver pushed first) or a call into another class.
func (l *Lowerer) lowerCall(e CallExpr) (vm.Module, error) {
	module := vm.Module{}
	callee := e.Name
	nArgs := len(e.Args)

	if e.Qualifier == "" {
		// Unqualified call: always a method of this same class, 'this' is the implicit receiver.
		module = append(module, vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0})
		nArgs++
		callee = fmt.Sprintf("%s.%s", l.className, e.Name)
	} else if _, variable, err := l.scopes.ResolveVariable(e.Qualifier); err == nil {
		// Qualifier names a local/field variable: method call on that object.
		receiver, err := l.loadVariable(variable)
		if err != nil {
			return nil, err
		}
		module = append(module, receiver...)
		nArgs++
		callee = fmt.Sprintf("%s.%s", variable.Type.ClassName, e.Name)
	} else {
		// Qualifier names a class: plain function/constructor call, no implicit receiver.
		callee = fmt.Sprintf("%s.%s", e.Qualifier, e.Name)
	}

	for _, arg := range e.Args {
		ops, err := l.lowerExpression(arg)
		if err != nil {
			return nil, err
		}
		module = append(module, ops...)
	}

	module = append(module, vm.FuncCallOp{Name: callee, NArgs: uint8(nArgs)})
	return module, nil
}

// ----------------------------------------------------------------------------
// Variable access

func (l *Lowerer) loadVariable(v Variable) (vm.Module, error) {
	segment, offset, err := l.segmentAndOffset(v)
	if err != nil {
		return nil, err
	}
	return vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: segment, Offset: offset}}, nil
}

func (l *Lowerer) storeVariable(v Variable) (vm.Module, error) {
	segment, offset, err := l.segmentAndOffset(v)
	if err != nil {
		return nil, err
	}
	return vm.Module{vm.MemoryOp{Operation: vm.Pop, Segment: segment, Offset: offset}}, nil
}

func (l *Lowerer) segmentAndOffset(v Variable) (vm.SegmentType, uint16, error) {
	segment, ok := segmentByKind[v.Kind]
	if !ok {
		return "", 0, fmt.Errorf("variable %q has unrecognized kind %q", v.Name, v.Kind)
	}
	offset, _, err := l.scopes.ResolveVariable(v.Name)
	if err != nil {
		return "", 0, err
	}
	return segment, offset, nil
}

func parseUint16(s string) (uint16, error) {
	var value uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid integer literal %q", s)
		}
		value = value*10 + uint64(r-'0')
	}
	if value > 32767 {
		return 0, fmt.Errorf("integer literal %q out of range (max 32767)", s)
	}
	return uint16(value), nil
}
