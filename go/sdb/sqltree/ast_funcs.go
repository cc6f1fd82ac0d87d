/*
Copyright 2026 The Shardine Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqltree

import (
	"errors"
	"fmt"
)

// NewRangeTableRef returns a leaf node pointing at the given 1-based range
// table position.
func NewRangeTableRef(index int) *RangeTableRef {
	return &RangeTableRef{Index: index}
}

// SingleEntryFrom builds a join tree consisting of a single range table
// reference.
func SingleEntryFrom(index int) *FromExpr {
	return &FromExpr{List: []JoinTreeNode{NewRangeTableRef(index)}}
}

var errFound = errors.New("node found")

// FindNodeMatching reports whether any node in the given trees matches the
// predicate. It descends into nested queries.
func FindNodeMatching(pred func(SQLNode) bool, nodes ...SQLNode) bool {
	err := Walk(func(node SQLNode) (bool, error) {
		if pred(node) {
			return false, errFound
		}
		return true, nil
	}, nodes...)
	return err != nil
}

// ColumnDefsForTargetList derives the column definition list describing the
// visible output of a target list. Unnamed columns get positional names.
func ColumnDefsForTargetList(targetList []*TargetEntry) []ColumnDef {
	defs := make([]ColumnDef, 0, len(targetList))
	for i, tle := range targetList {
		if tle.Junk {
			continue
		}
		name := tle.Name
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		defs = append(defs, ColumnDef{Name: name, Type: tle.Expr.ExprType()})
	}
	return defs
}

// EntryForJoinLeaf resolves a join tree node to its range table entry when
// the node is a leaf reference.
func (q *QueryTree) EntryForJoinLeaf(node JoinTreeNode) (*RangeTableEntry, int, bool) {
	ref, ok := node.(*RangeTableRef)
	if !ok {
		return nil, 0, false
	}
	return q.EntryAt(ref.Index), ref.Index, true
}

// TargetListForEntry builds the target list that selects every output
// column of the subquery held by the range table entry at the given
// position. It is how a wrapper query re-exposes a wrapped subquery.
func TargetListForEntry(sub *QueryTree, index int) []*TargetEntry {
	var out []*TargetEntry
	col := 0
	for _, tle := range sub.TargetList {
		if tle.Junk {
			continue
		}
		col++
		out = append(out, &TargetEntry{
			Expr: &ColumnRef{
				RTIndex: index,
				Column:  col,
				Name:    tle.Name,
				Type:    tle.Expr.ExprType(),
			},
			Name: tle.Name,
		})
	}
	return out
}
