package jack

import (
	"fmt"

	"its-hmny.dev/nand2tetris/pkg/utils"
)

// ----------------------------------------------------------------------------
// Scope Table

// ScopeTable tracks every variable visible at a given point during compilation, split across
// the four Jack variable kinds. Class scope (field/static) and subroutine scope (local/parameter)
// are pushed/popped independently since a subroutine's locals/parameters go out of scope far more
// often than its enclosing class' fields do.
//
// Static variables are intentionally not cleared by PopClassScope: in Jack a static variable's
// storage is shared by the whole class for the program's lifetime, so they stay resolvable until
// the next class scope is pushed, which discards them so they never leak into another class.
type ScopeTable struct {
	class      string // Name of the class currently in scope, "" if none
	subroutine string // Name of the subroutine currently in scope, "" if none

	static utils.Stack[Variable] // Reset on every PushClassScope, kept across PopClassScope
	field  utils.Stack[Variable] // Reset on every PushClassScope/PopClassScope
	local  utils.Stack[Variable] // Reset on every PushSubRoutineScope/PopSubroutineScope
	param  utils.Stack[Variable] // Reset on every PushSubRoutineScope/PopSubroutineScope
}

// PushClassScope opens a new class scope, discarding any field and static variables left over
// from a previous class.
func (st *ScopeTable) PushClassScope(class string) {
	st.class = class
	st.subroutine = ""
	st.static = utils.Stack[Variable]{}
	st.field = utils.Stack[Variable]{}
}

// PopClassScope closes the current class scope, discarding its field variables.
func (st *ScopeTable) PopClassScope() {
	st.class = ""
	st.field = utils.Stack[Variable]{}
}

// PushSubRoutineScope opens a new subroutine scope, discarding any local/parameter variables
// left over from a previously compiled subroutine of the same (or another) class.
func (st *ScopeTable) PushSubRoutineScope(method string) {
	st.subroutine = method
	st.local = utils.Stack[Variable]{}
	st.param = utils.Stack[Variable]{}
}

// PopSubroutineScope closes the current subroutine scope, discarding its local/parameter variables.
func (st *ScopeTable) PopSubroutineScope() {
	st.subroutine = ""
	st.local = utils.Stack[Variable]{}
	st.param = utils.Stack[Variable]{}
}

// GetScope returns a human readable identifier for the scope currently active, mostly
// used for diagnostics and to namespace generated labels.
func (st *ScopeTable) GetScope() string {
	if st.class == "" {
		return "Global"
	}
	if st.subroutine == "" {
		return fmt.Sprintf("%s.Global", st.class)
	}
	return fmt.Sprintf("%s.%s", st.class, st.subroutine)
}

// RegisterVariable pushes a new variable onto the stack matching its kind, the entry becomes
// immediately resolvable (and shadows any previous entry with the same name) through ResolveVariable.
func (st *ScopeTable) RegisterVariable(new Variable) {
	switch new.Type {
	case Static:
		st.static.Push(new)
	case Field:
		st.field.Push(new)
	case Local:
		st.local.Push(new)
	case Parameter:
		st.param.Push(new)
	}
}

// Define registers a new variable like RegisterVariable does, but first checks that no
// variable of the same kind and name is already visible, returning a CompileError on
// redefinition instead of silently shadowing it. This is the guard the lower-level
// RegisterVariable intentionally omits (some callers, like tests, rely on shadowing).
func (st *ScopeTable) Define(v Variable) error {
	if _, _, err := st.resolveKind(v.Name, v.Type); err == nil {
		return CompileError{reason: fmt.Sprintf("redefinition of %q in the same scope", v.Name)}
	}
	st.RegisterVariable(v)
	return nil
}

// StartSubroutine is an alias for PushSubRoutineScope kept to mirror the canonical
// symbol-table vocabulary used when discussing the Compilation Engine.
func (st *ScopeTable) StartSubroutine(name string) { st.PushSubRoutineScope(name) }

// VarCount returns how many variables of the given kind are currently visible.
func (st *ScopeTable) VarCount(kind VarType) uint16 {
	switch kind {
	case Static:
		return uint16(st.static.Count())
	case Field:
		return uint16(st.field.Count())
	case Local:
		return uint16(st.local.Count())
	case Parameter:
		return uint16(st.param.Count())
	}
	return 0
}

// ResolveVariable looks up 'name' across every kind, innermost scope first (local, then
// parameter, then field, then static), returning its per-kind dense index, its full
// declaration and an error if no variable with that name is currently visible.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	for _, kind := range []VarType{Local, Parameter, Field, Static} {
		if offset, v, err := st.resolveKind(name, kind); err == nil {
			return offset, v, nil
		}
	}
	return 0, Variable{}, CompileError{reason: fmt.Sprintf("variable '%s' undeclared, not found in any scope", name)}
}

// Find is sugar over ResolveVariable for callers that only care whether the name resolves.
func (st *ScopeTable) Find(name string) (Variable, bool) {
	_, v, err := st.ResolveVariable(name)
	return v, err == nil
}

func (st *ScopeTable) resolveKind(name string, kind VarType) (uint16, Variable, error) {
	var stack *utils.Stack[Variable]
	switch kind {
	case Static:
		stack = &st.static
	case Field:
		stack = &st.field
	case Local:
		stack = &st.local
	case Parameter:
		stack = &st.param
	default:
		return 0, Variable{}, fmt.Errorf("unrecognized variable kind %q", kind)
	}

	found, offset, variable := false, uint16(0), Variable{}
	stack.Iterator()(func(idx int, entry Variable) bool {
		if entry.Name == name {
			found, offset, variable = true, uint16(idx), entry
			return false
		}
		return true
	})
	if found {
		return offset, variable, nil
	}
	return 0, Variable{}, fmt.Errorf("undeclared identifier %q", name)
}
