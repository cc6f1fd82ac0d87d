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

package recursive

import (
	"fmt"

	"shardine.io/shardine/go/sdb/sqltree"
)

// Function names under which intermediate results are readable in a query.
const (
	ResultReadFunction      = "read_intermediate_result"
	ResultReadArrayFunction = "read_intermediate_results"
)

// Transfer format arguments accepted by the result read functions.
const (
	BinaryFormat = "binary"
	TextFormat   = "text"
)

// resultEntryAlias names the range table entry of a result read, matching
// what column references against the replaced fragment resolve to.
const resultEntryAlias = "intermediate_result"

// ResultID builds the identifier under which a subplan's result is stored
// and read back.
func ResultID(planID uint64, subPlanID uint32) string {
	return fmt.Sprintf("%d_%d", planID, subPlanID)
}

// BuildResultReadQuery builds the query that takes a decomposed fragment's
// place: a plain select over read_intermediate_result with the fragment's
// visible columns. Column aliases, when given, override the fragment's
// column names positionally.
func BuildResultReadQuery(targetList []*sqltree.TargetEntry, columnAliases []string, resultID string) *sqltree.QueryTree {
	defs := resultColumnDefs(targetList, columnAliases)
	format := TextFormat
	if CanUseBinaryFormat(defs) {
		format = BinaryFormat
	}
	fn := &sqltree.FuncExpr{
		Name: ResultReadFunction,
		Args: []sqltree.Expr{
			&sqltree.Const{Type: sqltree.TypeText, Val: resultID},
			&sqltree.Const{Type: sqltree.TypeText, Val: format},
		},
		ReturnsSet: true,
	}
	return resultReadQuery(fn, defs)
}

// BuildResultsReadArrayQuery builds a query reading the concatenation of
// several subplan results, all sharing the column shape described by the
// target list.
func BuildResultsReadArrayQuery(targetList []*sqltree.TargetEntry, columnAliases []string, resultIDs []string) *sqltree.QueryTree {
	defs := resultColumnDefs(targetList, columnAliases)
	format := TextFormat
	if CanUseBinaryFormat(defs) {
		format = BinaryFormat
	}
	ids := make([]sqltree.Expr, 0, len(resultIDs))
	for _, id := range resultIDs {
		ids = append(ids, &sqltree.Const{Type: sqltree.TypeText, Val: id})
	}
	fn := &sqltree.FuncExpr{
		Name: ResultReadArrayFunction,
		Args: []sqltree.Expr{
			&sqltree.FuncExpr{Name: "ARRAY", Args: ids, Type: sqltree.TypeText},
			&sqltree.Const{Type: sqltree.TypeText, Val: format},
		},
		ReturnsSet: true,
	}
	return resultReadQuery(fn, defs)
}

// BuildEmptyResultQuery builds a query with the given column shape that
// returns no rows, used when a fragment is known to produce nothing.
func BuildEmptyResultQuery(targetList []*sqltree.TargetEntry, columnAliases []string) *sqltree.QueryTree {
	defs := resultColumnDefs(targetList, columnAliases)
	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	for _, def := range defs {
		q.TargetList = append(q.TargetList, &sqltree.TargetEntry{
			Expr: &sqltree.Const{Type: def.Type, Null: true},
			Name: def.Name,
		})
	}
	q.JoinTree = &sqltree.FromExpr{
		Quals: &sqltree.Const{Type: sqltree.TypeBool, Val: "false"},
	}
	return q
}

func resultReadQuery(fn *sqltree.FuncExpr, defs []sqltree.ColumnDef) *sqltree.QueryTree {
	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	idx := q.AddEntry(&sqltree.RangeTableEntry{
		Alias: resultEntryAlias,
		Ref:   &sqltree.FunctionRef{Func: fn, Columns: defs},
	})
	q.JoinTree = sqltree.SingleEntryFrom(idx)
	for col, def := range defs {
		q.TargetList = append(q.TargetList, &sqltree.TargetEntry{
			Expr: &sqltree.ColumnRef{
				RTIndex: idx,
				Column:  col + 1,
				Name:    def.Name,
				Type:    def.Type,
			},
			Name: def.Name,
		})
	}
	return q
}

func resultColumnDefs(targetList []*sqltree.TargetEntry, columnAliases []string) []sqltree.ColumnDef {
	defs := sqltree.ColumnDefsForTargetList(targetList)
	for i := range defs {
		if i < len(columnAliases) && columnAliases[i] != "" {
			defs[i].Name = columnAliases[i]
		}
	}
	return defs
}

// CanUseBinaryFormat reports whether every column of the result can be
// shipped in the binary copy format. A single non-binary column downgrades
// the whole result to text.
func CanUseBinaryFormat(defs []sqltree.ColumnDef) bool {
	for _, def := range defs {
		if !def.Type.SupportsBinaryTransfer() {
			return false
		}
	}
	return true
}

// ContainsResultRead reports whether the tree reads any intermediate
// result.
func ContainsResultRead(node sqltree.SQLNode) bool {
	return sqltree.FindNodeMatching(func(node sqltree.SQLNode) bool {
		fn, ok := node.(*sqltree.FuncExpr)
		if !ok {
			return false
		}
		return fn.Name == ResultReadFunction || fn.Name == ResultReadArrayFunction
	}, node)
}
