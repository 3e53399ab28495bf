package sem

// BorrowMap tracks the outstanding borrows of a single variable at the
// current scope level.  Entries live in a scoped table keyed by the borrowee
// decl, so closing a scope naturally releases every borrow taken inside it.
type BorrowMap struct {
	ImmutableBorrowCount int
	MutableBorrowCount   int
}
