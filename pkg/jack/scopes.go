package jack

import (
	"fmt"

	"github.com/nand2tetris-go/toolchain/pkg/utils"
)

// ScopeTable is a two-level scoped symbol table: a class level (static/field) and a
// subroutine level (argument/local). Lookup always tries subroutine scope first, so an
// inner declaration shadows an outer one of the same name.
//
// The zero value is usable directly (it behaves as an empty table with no class pushed).
type ScopeTable struct {
	className      string
	subroutineName string

	static utils.Stack[Variable]
	field  utils.Stack[Variable]

	argument utils.Stack[Variable]
	local    utils.Stack[Variable]
}

// NewScopeTable returns an empty, ready-to-use table.
func NewScopeTable() *ScopeTable { return &ScopeTable{} }

// PushClassScope resets static/field storage and records the class currently being
// processed. Both static and field are scoped to (and reset per) the enclosing class.
func (st *ScopeTable) PushClassScope(class string) {
	st.className = class
	st.static = utils.Stack[Variable]{}
	st.field = utils.Stack[Variable]{}
}

// PopClassScope clears the class-level scope entirely.
func (st *ScopeTable) PopClassScope() {
	st.className = ""
	st.static = utils.Stack[Variable]{}
	st.field = utils.Stack[Variable]{}
}

// PushSubRoutineScope resets argument/local storage and records the subroutine
// currently being processed. Class-level entries are left untouched.
func (st *ScopeTable) PushSubRoutineScope(name string) {
	st.subroutineName = name
	st.argument = utils.Stack[Variable]{}
	st.local = utils.Stack[Variable]{}
}

// PopSubroutineScope clears the subroutine-level scope, leaving class scope intact.
func (st *ScopeTable) PopSubroutineScope() {
	st.subroutineName = ""
	st.argument = utils.Stack[Variable]{}
	st.local = utils.Stack[Variable]{}
}

// GetScope returns a human readable scope name ("Class.subroutine"), a debugging aid
// (the Lowerer builds VM function names itself). "Global" is a placeholder subroutine
// name used while only a class scope is pushed.
func (st *ScopeTable) GetScope() string {
	if st.className == "" {
		return "Global"
	}
	if st.subroutineName != "" {
		return fmt.Sprintf("%s.%s", st.className, st.subroutineName)
	}
	return fmt.Sprintf("%s.Global", st.className)
}

type scopeLevel uint8

const (
	classLevel scopeLevel = iota
	subroutineLevel
)

// RegisterVariable registers a new variable in the scope implied by its Kind, assigning
// it the next dense index for that kind. Redefining a name already registered at the
// same scope level (static and field share class scope; argument and local share
// subroutine scope) is a fatal error, not a shadow.
func (st *ScopeTable) RegisterVariable(new Variable) error {
	level := classLevel
	if new.Kind == ArgumentVar || new.Kind == LocalVar {
		level = subroutineLevel
	}
	if _, _, err := st.lookupLevel(new.Name, level); err == nil {
		return fmt.Errorf("symbol '%s' is already defined in this scope", new.Name)
	}

	switch new.Kind {
	case StaticVar:
		st.static.Push(new)
	case FieldVar:
		st.field.Push(new)
	case ArgumentVar:
		st.argument.Push(new)
	case LocalVar:
		st.local.Push(new)
	}
	return nil
}

// lookupLevel checks only the stacks that belong to the given level.
func (st *ScopeTable) lookupLevel(name string, level scopeLevel) (uint16, Variable, error) {
	var stacks []*utils.Stack[Variable]
	if level == subroutineLevel {
		stacks = []*utils.Stack[Variable]{&st.argument, &st.local}
	} else {
		stacks = []*utils.Stack[Variable]{&st.static, &st.field}
	}

	for _, stack := range stacks {
		for idx, entry := range stack.Entries() {
			if entry.Name == name {
				return uint16(idx), entry, nil
			}
		}
	}
	return 0, Variable{}, fmt.Errorf("variable '%s' not found in this scope level", name)
}

// ResolveVariable looks up name, trying subroutine scope (argument, then local) before
// class scope (static, then field) — an inner declaration shadows an outer one.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	if offset, v, err := st.lookupLevel(name, subroutineLevel); err == nil {
		return offset, v, nil
	}
	if offset, v, err := st.lookupLevel(name, classLevel); err == nil {
		return offset, v, nil
	}
	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}

// FieldCount returns the number of 'field' (non-static) variables registered in the
// current class scope — this is the object size a constructor must Memory.alloc.
func (st *ScopeTable) FieldCount() int { return st.field.Count() }
