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
	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/sqltree"
)

// planRecurringOuterJoins resolves outer joins whose outer side produces
// recurring tuples. Such a join would emit its recurring rows once per
// shard of the distributed side; the distributed side is therefore
// materialized, which turns the whole join recurring and single-pass.
//
// The walk is post-order: inner joins are resolved before the joins that
// contain them, so a side's classification is final by the time its parent
// join is examined. The returned flag reports whether the node is
// recurring after resolution.
func (ctx *planningContext) planRecurringOuterJoins(q *sqltree.QueryTree, node sqltree.JoinTreeNode) (bool, error) {
	switch node := node.(type) {
	case *sqltree.FromExpr:
		recurring := true
		for _, sub := range node.List {
			subRecurring, err := ctx.planRecurringOuterJoins(q, sub)
			if err != nil {
				return false, err
			}
			recurring = recurring && subRecurring
		}
		return recurring, nil

	case *sqltree.JoinExpr:
		leftRecurring, err := ctx.planRecurringOuterJoins(q, node.Left)
		if err != nil {
			return false, err
		}
		rightRecurring, err := ctx.planRecurringOuterJoins(q, node.Right)
		if err != nil {
			return false, err
		}

		switch node.Type {
		case sqltree.InnerJoin:
			// Inner joins distribute fine against recurring inputs.
		case sqltree.LeftJoin:
			if leftRecurring && !rightRecurring {
				if err := ctx.planDistributedJoinNode(q, node.Right); err != nil {
					return false, err
				}
				rightRecurring = true
			}
		case sqltree.RightJoin:
			if rightRecurring && !leftRecurring {
				if err := ctx.planDistributedJoinNode(q, node.Left); err != nil {
					return false, err
				}
				leftRecurring = true
			}
		case sqltree.FullJoin:
			if leftRecurring && !rightRecurring {
				if err := ctx.planDistributedJoinNode(q, node.Right); err != nil {
					return false, err
				}
				rightRecurring = true
			}
			if rightRecurring && !leftRecurring {
				if err := ctx.planDistributedJoinNode(q, node.Left); err != nil {
					return false, err
				}
				leftRecurring = true
			}
		default:
			return false, sdberrors.Bugf("unexpected join type %d", node.Type)
		}
		return leftRecurring && rightRecurring, nil

	case *sqltree.RangeTableRef:
		return entryIsRecurring(ctx.restriction.Catalog, q.EntryAt(node.Index)), nil

	default:
		return false, sdberrors.Bugf("unexpected join tree node %T", node)
	}
}

// planDistributedJoinNode materializes the distributed side of a resolved
// outer join. A bare relation is wrapped into a subquery first; a join
// node gets every distributed leaf under it materialized, which makes the
// join itself recurring.
func (ctx *planningContext) planDistributedJoinNode(q *sqltree.QueryTree, node sqltree.JoinTreeNode) error {
	switch node := node.(type) {
	case *sqltree.RangeTableRef:
		rte := q.EntryAt(node.Index)
		switch ref := rte.Ref.(type) {
		case *sqltree.SubqueryRef:
			if ContainsReferencesToOuterQuery(ref.Query) {
				return sdberrors.Unsupportedf(
					"correlated subqueries cannot be the distributed side of an outer join with a recurring outer side")
			}
			return ctx.planSubquery(ref.Query)
		case *sqltree.RelationRef:
			return ctx.planWrappedRelation(rte, ref)
		default:
			return sdberrors.Unsupportedf(
				"%T cannot be the distributed side of an outer join with a recurring outer side", ref)
		}
	case *sqltree.JoinExpr:
		if err := ctx.planDistributedJoinLeaves(q, node.Left); err != nil {
			return err
		}
		return ctx.planDistributedJoinLeaves(q, node.Right)
	case *sqltree.FromExpr:
		for _, sub := range node.List {
			if err := ctx.planDistributedJoinLeaves(q, sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return sdberrors.Bugf("unexpected join tree node %T", node)
	}
}

// planDistributedJoinLeaves materializes every non-recurring leaf under
// the node.
func (ctx *planningContext) planDistributedJoinLeaves(q *sqltree.QueryTree, node sqltree.JoinTreeNode) error {
	switch node := node.(type) {
	case *sqltree.RangeTableRef:
		if entryIsRecurring(ctx.restriction.Catalog, q.EntryAt(node.Index)) {
			return nil
		}
		return ctx.planDistributedJoinNode(q, node)
	case *sqltree.JoinExpr:
		if err := ctx.planDistributedJoinLeaves(q, node.Left); err != nil {
			return err
		}
		return ctx.planDistributedJoinLeaves(q, node.Right)
	case *sqltree.FromExpr:
		for _, sub := range node.List {
			if err := ctx.planDistributedJoinLeaves(q, sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return sdberrors.Bugf("unexpected join tree node %T", node)
	}
}
