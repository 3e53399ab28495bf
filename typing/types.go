package typing

import "ruse/sem"

// TypeKind discriminates the variants of Type
type TypeKind int

// Enumeration of type kinds
const (
	KindValue  TypeKind = iota // nominal type backed by a struct/enum/builtin decl
	KindRef                    // immutable reference, `&T`
	KindVarRef                 // unique/mutable reference, `&var T`
	KindPtr                    // raw pointer, `*T` (reserved)
)

// Type is the canonical in-memory representative of a type.  Canonical means
// there is exactly one Type value per distinct type in a compilation, so type
// equality is pointer identity.  Value types are canonical because each is
// created once when its declaration is checked; derived types are canonical
// because they are only ever obtained through the type table, keyed by their
// synthesized name (`&T`, `&var T`, `*T`).
type Type struct {
	Kind TypeKind
	Name *sem.Name

	// Referee is the referred-to type of a Ref/VarRef/Ptr
	Referee *Type

	// Decl is the struct/enum declaration backing a value type.  Builtin
	// types leave it nil, so they never count as struct types.
	Decl sem.Decl

	// Copyable reports whether values of this type may be duplicated by a
	// copy assignment.  Builtins and immutable references are copyable;
	// mutable references are not; a struct is copyable iff all of its fields
	// are.
	Copyable bool
}

// NewValueType creates the canonical type for a nominal declaration
func NewValueType(name *sem.Name, decl sem.Decl) *Type {
	return &Type{Kind: KindValue, Name: name, Decl: decl, Copyable: true}
}

// NewDerivedType creates a reference or pointer type over a referee.  Callers
// must install the result in the type table to keep derived types canonical.
func NewDerivedType(kind TypeKind, name *sem.Name, referee *Type) *Type {
	return &Type{Kind: kind, Name: name, Referee: referee, Copyable: kind == KindRef}
}

// IsRef reports whether t is a reference type of either mutability
func (t *Type) IsRef() bool {
	return t.Kind == KindRef || t.Kind == KindVarRef
}

func (t *Type) String() string {
	return t.Name.Text
}

// TypedDecl is implemented by declarations that expose a type: variables and
// nominal type declarations do, functions do not (functions are not
// first-class values).
type TypedDecl interface {
	sem.Decl

	// TypeMaybe returns the decl's type, or nil if it is not resolved yet
	TypeMaybe() *Type
}

// StructLike is implemented by struct declarations; it lets the type checker
// enumerate fields without depending on the AST package.
type StructLike interface {
	sem.Decl

	// FieldByName returns the field decl with the given name, or nil
	FieldByName(name *sem.Name) TypedDecl
}

// IsStruct reports whether t is a value type backed by a struct declaration
func (t *Type) IsStruct() bool {
	if t.Kind != KindValue || t.Decl == nil {
		return false
	}
	_, ok := t.Decl.(StructLike)
	return ok
}

// DerivedTypeName synthesizes the canonical spelling of a derived type over a
// referee name and interns it: `&T`, `&var T`, or `*T`.  The type table is
// keyed by these names.
func DerivedTypeName(names *sem.NameTable, kind TypeKind, referee *sem.Name) *sem.Name {
	switch kind {
	case KindRef:
		return names.Push("&" + referee.Text)
	case KindVarRef:
		return names.Push("&var " + referee.Text)
	case KindPtr:
		return names.Push("*" + referee.Text)
	default:
		panic("typing: derived name of a value type")
	}
}
