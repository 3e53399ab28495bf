package walk

import (
	"ruse/logging"
	"ruse/syntax"
)

// BasicBlock is a maximal straight-line statement sequence used by the return
// checker's control-flow graph.
type BasicBlock struct {
	Stmts []syntax.Stmt
	Pred  []*BasicBlock
	Succ  []*BasicBlock

	// walked marks the block during post-order enumeration
	walked bool

	// returnedSoFar indicates whether a return statement is guaranteed to
	// have been seen on every control flow that leads to this block
	returnedSoFar bool
}

// returns reports whether this block itself contains a return statement
func (bb *BasicBlock) returns() bool {
	for _, s := range bb.Stmts {
		if _, ok := s.(*syntax.ReturnStmt); ok {
			return true
		}
	}
	return false
}

// enumeratePostorder walks the block and all of its successors, appending
// them to the list in post-order
func (bb *BasicBlock) enumeratePostorder(list *[]*BasicBlock) {
	if bb.walked {
		return
	}
	bb.walked = true

	for _, s := range bb.Succ {
		s.enumeratePostorder(list)
	}

	*list = append(*list, bb)
}

// link makes `to` a successor of `from`, setting both link directions
func link(from, to *BasicBlock) {
	from.Succ = append(from.Succ, to)
	to.Pred = append(to.Pred, from)
}

// returnChecker is the third semantic pass: for every function with a
// non-void return type it builds a basic-block CFG, solves a dataflow
// fixpoint over it, and verifies that every path reaches a return.
type returnChecker struct {
	*Walker
}

func (rc *returnChecker) visitFile(f *syntax.File) {
	for _, d := range f.Decls {
		if fd, ok := d.(*syntax.FuncDecl); ok {
			rc.visitFuncDecl(fd)
		}
	}
}

func (rc *returnChecker) visitFuncDecl(f *syntax.FuncDecl) {
	if f.RetType == nil || f.RetType == rc.VoidType {
		return
	}
	// body-less function declarations (extern)
	if f.Body == nil {
		return
	}

	entry := &BasicBlock{}
	exit := rc.visitCompoundStmt(f.Body, entry)

	var walklist []*BasicBlock
	entry.enumeratePostorder(&walklist)

	solve(walklist)

	if !exit.returnedSoFar {
		rc.errorf(logging.LMKUsage, f.Pos(), "function not guaranteed to return a value")
	}
}

func (rc *returnChecker) visitCompoundStmt(cs *syntax.CompoundStmt, bb *BasicBlock) *BasicBlock {
	for _, s := range cs.Stmts {
		bb = rc.visitStmt(s, bb)
	}
	return bb
}

func (rc *returnChecker) visitStmt(s syntax.Stmt, bb *BasicBlock) *BasicBlock {
	if is, ok := s.(*syntax.IfStmt); ok {
		return rc.visitIfStmt(is, bb)
	}

	// "plain" statements accumulate into a single basic block
	bb.Stmts = append(bb.Stmts, s)
	return bb
}

// visitIfStmt splits the CFG at a branch.  The then-branch always gets a new
// block; an else-branch only if one exists, otherwise the join takes the
// pre-branch block itself as its else predecessor.  An else-if is visited
// recursively with the pre-branch block as its predecessor, not a fresh one.
func (rc *returnChecker) visitIfStmt(is *syntax.IfStmt, bb *BasicBlock) *BasicBlock {
	thenStart := &BasicBlock{}
	link(bb, thenStart)
	thenEnd := rc.visitCompoundStmt(is.Then, thenStart)

	elseEnd := bb
	if is.ElseIf != nil {
		elseEnd = rc.visitIfStmt(is.ElseIf, bb)
	} else if is.Else != nil {
		elseStart := &BasicBlock{}
		link(bb, elseStart)
		elseEnd = rc.visitCompoundStmt(is.Else, elseStart)
	}

	// every branch converges at a fresh join block
	join := &BasicBlock{}
	link(thenEnd, join)
	link(elseEnd, join)

	return join
}

// solve runs the iterative dataflow solution over the post-order enumeration
// until a fixed point:
//
//	returnedSoFar(b) = returns(b) ∨ (pred(b) ≠ ∅ ∧ ∀p ∈ pred(b): returnedSoFar(p))
func solve(walklist []*BasicBlock) {
	for _, bb := range walklist {
		bb.returnedSoFar = false
	}

	changed := true
	for changed {
		changed = false

		// iterate in reverse post-order so information flows forward
		for i := len(walklist) - 1; i >= 0; i-- {
			bb := walklist[i]

			allPredReturn := false
			if len(bb.Pred) > 0 {
				allPredReturn = true
				for _, p := range bb.Pred {
					allPredReturn = allPredReturn && p.returnedSoFar
				}
			}

			r := bb.returns() || allPredReturn
			if r != bb.returnedSoFar {
				changed = true
				bb.returnedSoFar = r
			}
		}
	}
}
