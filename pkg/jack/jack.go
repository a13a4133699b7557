package jack

import "github.com/nand2tetris-go/toolchain/pkg/utils"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Jack programming language.
//
// A program is a container of classes (the only top-level construct) and execution
// starts by locating the Main class and running its 'main' function. Besides classes
// the other constructs are:
// - Variables: containers of value, either class-scoped (static/field) or
//   subroutine-scoped (argument/local)
// - Subroutines: containers of instructions, either constructors, functions or methods
// - Statements: side effects, conditional/unconditional jumps and returns
// - Expressions: strictly left-to-right evaluated computations producing a value

// Program is a set of classes keyed by class name. In the Jack spec each class is
// translated to its own .vm file (much like a Java .class file), so the class is the
// natural top-level translation unit.
type Program map[string]Class

// ----------------------------------------------------------------------------
// Classes

// Class holds the fields (state) and subroutines (behavior) of a single Jack class.
type Class struct {
	Name        string                              // The class identifier; also the instantiated object's runtime type
	Fields      utils.OrderedMap[string, Variable]   // Both 'static' and 'field' variables, in declaration order
	Subroutines utils.OrderedMap[string, Subroutine] // Constructors, functions and methods, in declaration order
}

// ----------------------------------------------------------------------------
// Subroutines

// Subroutine is a named, typed procedure. Depending on SubroutineKind it is lowered
// with a different calling convention prologue (see lowering.go).
type Subroutine struct {
	Name string         // Name/id; paired with the class name this universally identifies the subroutine
	Kind SubroutineKind // Determines the codegen strategy used during lowering

	Return    DataType   // DataType{Kind: VoidType} when the subroutine returns void
	Arguments []Variable // Declared parameters, in declaration order (VarKind = ArgumentVar)
	Locals    []Variable // 'var' declarations from the subroutine body, in declaration order (VarKind = LocalVar)

	Statements []Statement // Statement list, in program order
}

type SubroutineKind string

const (
	Constructor SubroutineKind = "constructor"
	Function    SubroutineKind = "function"
	Method      SubroutineKind = "method"
)

// ----------------------------------------------------------------------------
// Statements

// Statement is the shared marker for every Jack statement form. A plain empty interface
// is enough here: the grammar has exactly five statement shapes and every consumer
// type-switches over the concrete struct, so a sealed-interface marker method would add
// ceremony without buying anything.
type Statement interface{}

type LetStmt struct { // Variable (or array cell) assignment
	Name  string     // The variable being written
	Index Expression // non-nil for 'let name[index] = value'
	Value Expression // Right-hand side, evaluated before the assignment happens
}

type IfStmt struct { // Two-way conditional jump
	Cond Expression
	Then []Statement
	Else []Statement // nil/empty when there's no 'else' clause
}

type WhileStmt struct { // Conditional loop
	Cond Expression
	Body []Statement
}

type DoStmt struct { // Unconditional call whose return value is discarded
	Call CallExpr
}

type ReturnStmt struct { // Returns control (and optionally a value) to the caller
	Value Expression // nil for a bare 'return;'
}

// ----------------------------------------------------------------------------
// Expressions

// Expression is the shared marker for every Jack expression form.
type Expression interface{}

type LiteralExpr struct {
	Kind  LiteralKind
	Value string // Raw lexeme: decimal digits, the string body with quotes stripped, or "" for true/false/null/this
}

type LiteralKind string

const (
	IntLiteral    LiteralKind = "int"
	StringLiteral LiteralKind = "string"
	TrueLiteral   LiteralKind = "true"
	FalseLiteral  LiteralKind = "false"
	NullLiteral   LiteralKind = "null"
	ThisLiteral   LiteralKind = "this"
)

type VarExpr struct{ Name string } // Reads the value held by a variable

type IndexExpr struct { // Reads a[i]
	Name  string
	Index Expression
}

type ParenExpr struct{ Inner Expression } // '(' expression ')' — still matters since Jack has no operator precedence

type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
}

type UnaryOp string

const (
	Negation UnaryOp = "negation" // '-' applied to a single term
	BoolNot  UnaryOp = "bool_not" // '~'
)

type BinaryExpr struct {
	Op       BinOp
	Lhs, Rhs Expression
}

type BinOp string

const (
	Plus      BinOp = "plus"
	Minus     BinOp = "minus"
	Multiply  BinOp = "multiply"
	Divide    BinOp = "divide"
	BoolAnd   BinOp = "bool_and"
	BoolOr    BinOp = "bool_or"
	LessThan  BinOp = "less_than"
	GreatThan BinOp = "greater_than"
	Equal     BinOp = "equal"
)

// CallExpr models both call forms from the grammar:
//
//	subroutineCall ::= ident '(' expressionList ')' | ident '.' ident '(' expressionList ')'
//
// Qualifier is "" for the first (unqualified) form.
type CallExpr struct {
	Qualifier string // class name or variable name ("" when unqualified)
	Name      string
	Args      []Expression
}

// ----------------------------------------------------------------------------
// Variables & types

// Variable is a named, typed, scoped storage location. The same struct represents
// static/field variables (class scope) and argument/local variables (subroutine scope).
type Variable struct {
	Name string
	Kind VarKind
	Type DataType
}

type VarKind string

const (
	StaticVar   VarKind = "static"
	FieldVar    VarKind = "field"
	ArgumentVar VarKind = "argument"
	LocalVar    VarKind = "local"
)

// DataType is 'int' | 'char' | 'boolean' | a class name. ClassName is only meaningful
// when Kind == ObjectType (it is the identifier that named the type in source).
type DataType struct {
	Kind      DataKind
	ClassName string
}

type DataKind string

const (
	IntType    DataKind = "int"
	CharType   DataKind = "char"
	BoolType   DataKind = "boolean"
	VoidType   DataKind = "void" // only legal as a Subroutine's Return type
	ObjectType DataKind = "object"
)
