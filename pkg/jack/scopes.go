package jack

// ----------------------------------------------------------------------------
// Scope Table

// The two-scope symbol table driving variable resolution during compilation.
//
// Jack has no nested blocks with their own declarations, so two flat maps are enough:
// the class scope (static and field kinds) lives for the whole class, the subroutine
// scope (argument and local kinds) is thrown away on entry to each subroutine. A
// per-kind running counter assigns each name its 0-based index inside the VM segment
// the kind maps to. Names in the subroutine scope shadow class-scope ones.
type ScopeTable struct {
	class      map[string]Symbol
	subroutine map[string]Symbol
	counters   map[SymbolKind]uint16
}

// Initializes and returns to the caller a brand new 'ScopeTable' struct.
func NewScopeTable() *ScopeTable {
	return &ScopeTable{
		class:      map[string]Symbol{},
		subroutine: map[string]Symbol{},
		counters:   map[SymbolKind]uint16{},
	}
}

// Throws away the subroutine scope and restarts its two counters from zero.
// The class scope (and its counters) is left untouched.
func (st *ScopeTable) StartSubroutine() {
	st.subroutine = map[string]Symbol{}
	st.counters[Argument], st.counters[Local] = 0, 0
}

// Registers a new variable in the scope its kind belongs to, assigning it the next
// index for that kind. Redefining a name in the same scope is a caller bug: the old
// entry is overwritten but its index is not reclaimed.
func (st *ScopeTable) Define(name string, dataType string, kind SymbolKind) Symbol {
	symbol := Symbol{Name: name, DataType: dataType, Kind: kind, Index: st.counters[kind]}
	st.counters[kind]++

	if kind == Static || kind == Field {
		st.class[name] = symbol
	} else {
		st.subroutine[name] = symbol
	}

	return symbol
}

// Resolves a name to its 'Symbol', searching the subroutine scope first so that
// arguments and locals shadow class-scope names. The flag reports whether the
// name is defined at all.
func (st *ScopeTable) Lookup(name string) (Symbol, bool) {
	if symbol, found := st.subroutine[name]; found {
		return symbol, true
	}
	if symbol, found := st.class[name]; found {
		return symbol, true
	}

	return Symbol{}, false
}

// Returns how many variables of the given kind are defined in its scope right now.
func (st *ScopeTable) VarCount(kind SymbolKind) uint16 {
	return st.counters[kind]
}
