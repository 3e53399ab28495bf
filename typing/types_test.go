package typing

import (
	"testing"

	"ruse/sem"
)

func TestDerivedTypeName(t *testing.T) {
	nt := sem.NewNameTable()
	intName := nt.Push("int")

	tests := []struct {
		kind TypeKind
		want string
	}{
		{KindRef, "&int"},
		{KindVarRef, "&var int"},
		{KindPtr, "*int"},
	}

	for _, tt := range tests {
		got := DerivedTypeName(nt, tt.kind, intName)
		if got.Text != tt.want {
			t.Errorf("DerivedTypeName(%v) = %q, want %q", tt.kind, got.Text, tt.want)
		}
	}

	// names intern, so asking twice yields the same Name
	if DerivedTypeName(nt, KindRef, intName) != DerivedTypeName(nt, KindRef, intName) {
		t.Error("derived names should be interned")
	}
}

func TestCopyability(t *testing.T) {
	nt := sem.NewNameTable()
	intTy := NewValueType(nt.Push("int"), nil)

	ref := NewDerivedType(KindRef, DerivedTypeName(nt, KindRef, intTy.Name), intTy)
	if !ref.Copyable {
		t.Error("immutable references are copyable")
	}

	varRef := NewDerivedType(KindVarRef, DerivedTypeName(nt, KindVarRef, intTy.Name), intTy)
	if varRef.Copyable {
		t.Error("mutable references are not copyable")
	}

	if !intTy.Copyable {
		t.Error("builtin value types are copyable")
	}
}

func TestIsRef(t *testing.T) {
	nt := sem.NewNameTable()
	intTy := NewValueType(nt.Push("int"), nil)

	if intTy.IsRef() {
		t.Error("value type is not a reference")
	}
	ref := NewDerivedType(KindRef, DerivedTypeName(nt, KindRef, intTy.Name), intTy)
	varRef := NewDerivedType(KindVarRef, DerivedTypeName(nt, KindVarRef, intTy.Name), intTy)
	ptr := NewDerivedType(KindPtr, DerivedTypeName(nt, KindPtr, intTy.Name), intTy)

	if !ref.IsRef() || !varRef.IsRef() {
		t.Error("both reference kinds are references")
	}
	if ptr.IsRef() {
		t.Error("raw pointers are not references")
	}
}
