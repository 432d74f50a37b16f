package pruntime

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Slot is a mutable cell for one variable: value, declared type and
// constness. DisplayName keeps the source casing for debugger views.
type Slot struct {
	Value       Value
	IsConstant  bool
	DataType    string
	DisplayName string
}

// Env is one scope in the environment stack. Names fold case on the way in;
// insertion order is preserved so debugger snapshots list variables in
// declaration order. An aliased entry points at a Slot owned by another
// scope, which is how by-reference parameters share storage.
type Env struct {
	slots  *linkedhashmap.Map
	parent *Env
}

func NewEnv(parent *Env) *Env {
	return &Env{slots: linkedhashmap.New(), parent: parent}
}

func foldName(name string) string {
	return strings.ToLower(name)
}

func (e *Env) Define(name string, isConstant bool, dataType string, v Value) error {
	key := foldName(name)
	if _, found := e.slots.Get(key); found {
		return fmt.Errorf("variable %s is already declared", name)
	}
	e.slots.Put(key, &Slot{Value: v, IsConstant: isConstant, DataType: dataType, DisplayName: name})
	return nil
}

// DefineAlias installs a foreign slot under a new name in this scope. Reads
// and writes through either name hit the same cell.
func (e *Env) DefineAlias(name string, slot *Slot) error {
	key := foldName(name)
	if _, found := e.slots.Get(key); found {
		return fmt.Errorf("variable %s is already declared", name)
	}
	e.slots.Put(key, slot)
	return nil
}

// Slot resolves a name to its slot, walking outward through enclosing
// scopes.
func (e *Env) Slot(name string) (*Slot, bool) {
	key := foldName(name)
	for env := e; env != nil; env = env.parent {
		if v, found := env.slots.Get(key); found {
			return v.(*Slot), true
		}
	}
	return nil, false
}

func (e *Env) Get(name string) (Value, error) {
	slot, ok := e.Slot(name)
	if !ok {
		return Value{}, fmt.Errorf("undeclared variable %s", name)
	}
	return slot.Value, nil
}

func (e *Env) Assign(name string, v Value) error {
	slot, ok := e.Slot(name)
	if !ok {
		return fmt.Errorf("undeclared variable %s", name)
	}
	if slot.IsConstant {
		return fmt.Errorf("cannot assign to constant %s", slot.DisplayName)
	}
	slot.Value = v
	return nil
}

// Serialize flattens the scope chain into a displayName -> value view,
// outermost scope first so inner declarations override outer ones. Shadowing
// is decided on the folded name even when the casing differs; the innermost
// spelling wins. Aliased slots serialize by their current value like any
// other.
func (e *Env) Serialize() *linkedhashmap.Map {
	var chain []*Env
	for env := e; env != nil; env = env.parent {
		chain = append(chain, env)
	}
	folded := linkedhashmap.New()
	for i := len(chain) - 1; i >= 0; i-- {
		it := chain[i].slots.Iterator()
		for it.Next() {
			slot := it.Value().(*Slot)
			folded.Put(it.Key(), slot)
		}
	}
	out := linkedhashmap.New()
	it := folded.Iterator()
	for it.Next() {
		slot := it.Value().(*Slot)
		out.Put(slot.DisplayName, slot.Value)
	}
	return out
}
