package heap

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// fold computes a stable 32-bit hash of the UTF-8 bytes of name (spec.md
// §3.3 "a stable folded 32-bit hash"). It is a variant of the FNV-1a fold
// used because it is simple, has no external dependency, and is stable
// across processes (required: symbol values must be reproducible in a
// serialized .tape chunk, spec.md §6.2).
func fold(name string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	// fold the high bits into the low 20 that Symbol actually keeps, so that
	// two names differing only in bits above the mask still tend to spread
	// across the 20-bit space instead of colliding en masse.
	h ^= h >> 20
	return h
}

// SymbolTable maps interned symbol hashes to their source name. It survives
// GC (spec.md §3.3): it lives outside the collected cells and collection
// leaves it untouched, so Name stays valid afterwards.
type SymbolTable struct {
	names *swiss.Map[uint32, string]
}

// NewSymbolTable returns a symbol table pre-seeded with the true/false
// boolean symbol names so SymbolName resolves them immediately.
func NewSymbolTable() *SymbolTable {
	st := &SymbolTable{names: swiss.NewMap[uint32, string](64)}
	st.names.Put(trueHash, "true")
	st.names.Put(falseHash, "false")
	return st
}

// CollisionError is reported when interning a new name would collide with a
// previously interned, distinct name sharing the same 20-bit hash (spec.md
// §3.3, §8 testable property 2). The implementation permits the caller to
// treat this as a diagnostic rather than an unconditional reject: the first
// interned name wins and is what SymbolName subsequently returns.
type CollisionError struct {
	Hash           uint32
	Existing, New string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("symbol hash collision at %#x: %q already interned, %q ignored", e.Hash, e.Existing, e.New)
}

// Intern returns the symbol Value for name, computing and storing its hash
// on first use. Interning the same name twice is idempotent and does not
// duplicate storage (spec.md §3.3). If a distinct name already occupies the
// computed hash, the existing name wins and a *CollisionError is returned
// alongside the (existing) symbol Value, so callers may choose to surface
// it as a diagnostic.
func (st *SymbolTable) Intern(name string) (Value, error) {
	h := fold(name) & symbolMask
	if existing, ok := st.names.Get(h); ok {
		if existing != name {
			return Symbol(h), &CollisionError{Hash: h, Existing: existing, New: name}
		}
		return Symbol(h), nil
	}
	st.names.Put(h, name)
	return Symbol(h), nil
}

// Name returns the interned name for hash, or "" and false if no name has
// been interned for it in this table.
func (st *SymbolTable) Name(hash uint32) (string, bool) {
	return st.names.Get(hash)
}

// MustName returns the interned name for hash, panicking if it was never
// interned. Used by debug/print paths where the symbol is known to have come
// from this table's own Intern.
func (st *SymbolTable) MustName(hash uint32) string {
	name, ok := st.names.Get(hash)
	if !ok {
		panic(fmt.Sprintf("heap: MustName: hash %#x was never interned", hash))
	}
	return name
}

// Each calls fn once per interned (hash, name) pair.
func (st *SymbolTable) Each(fn func(hash uint32, name string)) {
	st.names.Iter(func(h uint32, n string) (stop bool) {
		fn(h, n)
		return false
	})
}

// well-known symbols, computed once so Value.IsTruthy and the boolean
// literal opcodes don't need a SymbolTable reference.
var (
	trueHash  = fold("true") & symbolMask
	falseHash = fold("false") & symbolMask
)

// True and False are the distinguished boolean values (spec.md §3.1).
var (
	True  = Symbol(trueHash)
	False = Symbol(falseHash)
)

// Bool returns True or False for the Go bool b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}
