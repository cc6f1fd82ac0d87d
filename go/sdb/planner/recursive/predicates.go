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
	"errors"

	"shardine.io/shardine/go/sdb/shardmeta"
	"shardine.io/shardine/go/sdb/sqltree"
)

var errStop = errors.New("stop walking")

// ContainsReferencesToOuterQuery reports whether the query refers to
// anything defined outside of it: column references, aggregates, grouping
// functions, placeholders or CTEs of an enclosing query. Such a query
// cannot be planned on its own.
func ContainsReferencesToOuterQuery(q *sqltree.QueryTree) bool {
	return queryHasRefsAbove(q, 0)
}

// queryHasRefsAbove reports whether the query contains references that
// escape the query sitting depth levels above it.
func queryHasRefsAbove(q *sqltree.QueryTree, depth int) bool {
	found := false
	_ = sqltree.WalkQueryChildren(func(node sqltree.SQLNode) (bool, error) {
		levelsUp := -1
		switch node := node.(type) {
		case *sqltree.QueryTree:
			if queryHasRefsAbove(node, depth+1) {
				found = true
				return false, errStop
			}
			return false, nil
		case *sqltree.ColumnRef:
			levelsUp = node.LevelsUp
		case *sqltree.Aggref:
			levelsUp = node.LevelsUp
		case *sqltree.GroupingFunc:
			levelsUp = node.LevelsUp
		case *sqltree.PlaceholderVar:
			levelsUp = node.LevelsUp
		case *sqltree.CTERef:
			levelsUp = node.LevelsUp
		}
		if levelsUp > depth {
			found = true
			return false, errStop
		}
		return true, nil
	}, q)
	return found
}

// exprHasOuterRefs reports whether any subquery under the expression is
// correlated with the query owning the expression or one of its parents.
func exprHasOuterRefs(expr sqltree.Expr) bool {
	found := false
	_ = sqltree.Walk(func(node sqltree.SQLNode) (bool, error) {
		if sub, ok := node.(*sqltree.QueryTree); ok {
			if ContainsReferencesToOuterQuery(sub) {
				found = true
				return false, errStop
			}
			return false, nil
		}
		return true, nil
	}, expr)
	return found
}

// containsSubquery reports whether the expression holds any sublink.
func containsSubquery(expr sqltree.Expr) bool {
	return sqltree.FindNodeMatching(func(node sqltree.SQLNode) bool {
		_, ok := node.(*sqltree.Sublink)
		return ok
	}, expr)
}

func referencesClusterTable(catalog shardmeta.Catalog, node sqltree.SQLNode) bool {
	return sqltree.FindNodeMatching(func(node sqltree.SQLNode) bool {
		rel, ok := node.(*sqltree.RelationRef)
		return ok && shardmeta.IsClusterTable(catalog, rel.Relation)
	}, node)
}

func referencesDistributedTable(catalog shardmeta.Catalog, node sqltree.SQLNode) bool {
	return sqltree.FindNodeMatching(func(node sqltree.SQLNode) bool {
		rel, ok := node.(*sqltree.RelationRef)
		return ok && shardmeta.IsDistributedTable(catalog, rel.Relation)
	}, node)
}

func referencesLocalTableOrMatView(catalog shardmeta.Catalog, node sqltree.SQLNode) bool {
	return sqltree.FindNodeMatching(func(node sqltree.SQLNode) bool {
		rel, ok := node.(*sqltree.RelationRef)
		return ok && shardmeta.IsLocalOrMatView(catalog, rel.Relation)
	}, node)
}

func isDistributedRelation(catalog shardmeta.Catalog, rel *sqltree.RelationRef) bool {
	return shardmeta.IsDistributedTable(catalog, rel.Relation)
}

// setOpTreeHasNonUnion reports whether the set operation tree contains an
// INTERSECT or EXCEPT, which can never be pushed down.
func setOpTreeHasNonUnion(node sqltree.SetOpNode) bool {
	op, ok := node.(*sqltree.SetOpExpr)
	if !ok {
		return false
	}
	if op.Op != sqltree.UnionOp {
		return true
	}
	return setOpTreeHasNonUnion(op.Left) || setOpTreeHasNonUnion(op.Right)
}

// hasOuterJoin reports whether the query's own join tree contains an outer
// join. Nested queries keep their own join trees and are inspected at
// their own level.
func hasOuterJoin(q *sqltree.QueryTree) bool {
	if q.JoinTree == nil {
		return false
	}
	return joinTreeHasOuterJoin(q.JoinTree)
}

func joinTreeHasOuterJoin(node sqltree.JoinTreeNode) bool {
	switch node := node.(type) {
	case *sqltree.FromExpr:
		for _, sub := range node.List {
			if joinTreeHasOuterJoin(sub) {
				return true
			}
		}
		return false
	case *sqltree.JoinExpr:
		if node.Type != sqltree.InnerJoin {
			return true
		}
		return joinTreeHasOuterJoin(node.Left) || joinTreeHasOuterJoin(node.Right)
	default:
		return false
	}
}

// entryIsRecurring reports whether the range table entry produces the same
// tuples regardless of which shard the surrounding query runs against:
// anything that references no distributed table. Local tables and
// materialized views live on the coordinator only and are recurring too.
func entryIsRecurring(catalog shardmeta.Catalog, rte *sqltree.RangeTableEntry) bool {
	switch ref := rte.Ref.(type) {
	case *sqltree.RelationRef:
		return !shardmeta.IsDistributedTable(catalog, ref.Relation)
	case *sqltree.FunctionRef:
		return true
	case *sqltree.ValuesRef:
		return true
	case *sqltree.SubqueryRef:
		return !referencesDistributedTable(catalog, ref.Query)
	case *sqltree.JoinRef:
		return true
	default:
		return false
	}
}

// fromIsRecurring reports whether every range table entry of the query is
// recurring, which makes the query execute once rather than per shard. A
// query without FROM entries is recurring too.
func fromIsRecurring(catalog shardmeta.Catalog, q *sqltree.QueryTree) bool {
	for _, rte := range q.RangeTable {
		if !entryIsRecurring(catalog, rte) {
			return false
		}
	}
	return true
}

// countDistributedParts counts the independently plannable parts of the
// query that read distributed tables: FROM entries plus WHERE sublinks.
// With fewer than two such parts colocation cannot be violated.
func countDistributedParts(catalog shardmeta.Catalog, q *sqltree.QueryTree) int {
	count := 0
	for _, rte := range q.RangeTable {
		switch ref := rte.Ref.(type) {
		case *sqltree.RelationRef:
			if shardmeta.IsDistributedTable(catalog, ref.Relation) {
				count++
			}
		case *sqltree.SubqueryRef:
			if referencesDistributedTable(catalog, ref.Query) {
				count++
			}
		}
	}
	if q.JoinTree != nil && q.JoinTree.Quals != nil {
		_ = sqltree.Walk(func(node sqltree.SQLNode) (bool, error) {
			if sublink, ok := node.(*sqltree.Sublink); ok {
				if referencesDistributedTable(catalog, sublink.Query) {
					count++
				}
				return false, nil
			}
			return true, nil
		}, q.JoinTree.Quals)
	}
	return count
}
