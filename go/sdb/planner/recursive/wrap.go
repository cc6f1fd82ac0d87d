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
	"shardine.io/shardine/go/sdb/sqltree"
)

// wrapFunctions rewrites function calls in FROM into subqueries so that
// later passes only deal with relations and subqueries. A function that is
// the only FROM entry needs no wrapping, and LATERAL or WITH ORDINALITY
// calls cannot be moved out of their position.
func wrapFunctions(q *sqltree.QueryTree) {
	if len(q.RangeTable) < 2 {
		return
	}
	for _, rte := range q.RangeTable {
		fn, ok := rte.Ref.(*sqltree.FunctionRef)
		if !ok || rte.Lateral || fn.Ordinality {
			continue
		}

		inner := &sqltree.QueryTree{Command: sqltree.SelectCommand}
		idx := inner.AddEntry(&sqltree.RangeTableEntry{
			Alias: rte.Alias,
			Ref:   fn,
		})
		inner.JoinTree = sqltree.SingleEntryFrom(idx)
		for col, def := range fn.Columns {
			inner.TargetList = append(inner.TargetList, &sqltree.TargetEntry{
				Expr: &sqltree.ColumnRef{
					RTIndex: idx,
					Column:  col + 1,
					Name:    def.Name,
					Type:    def.Type,
				},
				Name: def.Name,
			})
		}
		rte.Ref = &sqltree.SubqueryRef{Query: inner}
	}
}

// planWrappedRelation materializes a base relation that must become
// recurring. The relation is first wrapped into a subquery selecting only
// the columns the query uses, with the relation's pushable filters, and
// that subquery is split off as a subplan. A second wrapper then restores
// the relation's full column list, exposing unused columns as NULL so
// column references elsewhere in the query keep resolving by position.
func (ctx *planningContext) planWrappedRelation(rte *sqltree.RangeTableEntry, rel *sqltree.RelationRef) error {
	columns := ctx.restriction.Catalog.Columns(rel.Relation)
	required := ctx.restriction.Relations.RequiredColumns(rel.Relation)
	if len(required) == 0 && len(columns) > 0 {
		// The result still needs a column to carry row multiplicity.
		required = []int{1}
	}

	inner := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	relCopy := *rel
	innerIdx := inner.AddEntry(&sqltree.RangeTableEntry{
		Alias: entryName(rte, rel),
		Ref:   &relCopy,
	})
	inner.JoinTree = sqltree.SingleEntryFrom(innerIdx)
	if filters := ctx.restriction.Relations.PushableFilters(rel.Relation); filters != nil {
		inner.JoinTree.Quals = remapColumnRefs(sqltree.CloneExpr(filters), innerIdx)
	}

	position := make(map[int]int, len(required))
	for _, att := range required {
		def := columns[att-1]
		inner.TargetList = append(inner.TargetList, &sqltree.TargetEntry{
			Expr: &sqltree.ColumnRef{
				RTIndex: innerIdx,
				Column:  att,
				Name:    def.Name,
				Type:    def.Type,
			},
			Name: def.Name,
		})
		position[att] = len(inner.TargetList)
	}

	if err := ctx.planSubquery(inner); err != nil {
		return err
	}

	outer := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	outerIdx := outer.AddEntry(&sqltree.RangeTableEntry{
		Alias: entryName(rte, rel),
		Ref:   &sqltree.SubqueryRef{Query: inner},
	})
	outer.JoinTree = sqltree.SingleEntryFrom(outerIdx)
	for i, def := range columns {
		var expr sqltree.Expr
		if pos, ok := position[i+1]; ok {
			expr = &sqltree.ColumnRef{
				RTIndex: outerIdx,
				Column:  pos,
				Name:    def.Name,
				Type:    def.Type,
			}
		} else {
			expr = &sqltree.Const{Type: def.Type, Null: true}
		}
		outer.TargetList = append(outer.TargetList, &sqltree.TargetEntry{
			Expr: expr,
			Name: def.Name,
		})
	}

	rte.Ref = &sqltree.SubqueryRef{Query: outer}
	return nil
}

func entryName(rte *sqltree.RangeTableEntry, rel *sqltree.RelationRef) string {
	if rte.Alias != "" {
		return rte.Alias
	}
	return rel.Name
}

// remapColumnRefs points all same-level column references in the
// expression at the given range table position. Filters handed over by the
// restriction machinery reference the relation at its position in the
// original query; inside the wrapper the relation is the only entry.
func remapColumnRefs(expr sqltree.Expr, index int) sqltree.Expr {
	_ = sqltree.Walk(func(node sqltree.SQLNode) (bool, error) {
		switch node := node.(type) {
		case *sqltree.QueryTree:
			return false, nil
		case *sqltree.ColumnRef:
			if node.LevelsUp == 0 {
				node.RTIndex = index
			}
		}
		return true, nil
	}, expr)
	return expr
}
