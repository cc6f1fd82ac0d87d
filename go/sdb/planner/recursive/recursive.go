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

// Package recursive implements recursive decomposition of distributed
// queries: query parts that cannot run in a single distributed pass are
// split off as independently planned subplans whose results the remaining
// query reads back as intermediate results.
//
// Decomposition rewrites the query tree in place, bottom-up. A decomposed
// part is replaced by a subquery of the form
//
//	SELECT ... FROM read_intermediate_result('<planId>_<subPlanId>', ...)
//
// so the surrounding query keeps its shape while the part itself becomes a
// recurring (shard-independent) input.
package recursive

import (
	"sync/atomic"

	"shardine.io/shardine/go/sdb/log"
	"shardine.io/shardine/go/sdb/planner"
	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/sqltree"
)

// planningDepth counts in-flight decomposition passes in this process.
// Fragment planning reenters the planner, which must be able to tell that
// it is planning a subplan rather than a client query.
var planningDepth atomic.Int32

// GeneratingSubplans reports whether the calling process is currently
// inside a decomposition pass.
func GeneratingSubplans() bool {
	return planningDepth.Load() > 0
}

type planningContext struct {
	// level is the subquery nesting depth of the query currently being
	// processed, zero for the top-level query.
	level  int
	planID uint64

	// allDistributionKeysEqual caches the equivalence verdict for the
	// whole original query. When true, colocation can never be the reason
	// to decompose.
	allDistributionKeysEqual bool

	restriction *planner.RestrictionContext
	subPlans    []*planner.DistributedSubPlan
}

// Decompose splits off every part of the query that cannot participate in
// a single distributed pass, rewriting q in place, and returns the
// generated subplans in execution order. Subplan identifiers are 1-based
// and strictly increasing; a later subplan may read the results of an
// earlier one but never the reverse.
func Decompose(q *sqltree.QueryTree, planID uint64, rctx *planner.RestrictionContext) ([]*planner.DistributedSubPlan, error) {
	ctx := &planningContext{
		planID:                   planID,
		allDistributionKeysEqual: rctx.Equivalence.AllDistributionKeysEqual(q),
		restriction:              rctx,
	}

	planningDepth.Add(1)
	defer planningDepth.Add(-1)

	if err := ctx.planSubqueriesAndCTEs(q); err != nil {
		return nil, err
	}
	return ctx.subPlans, nil
}

// planSubqueriesAndCTEs runs all decomposition passes over one query
// level. Nested queries are processed depth-first through
// planNestedSubqueries, so by the time a pass looks at this level its
// subqueries are already in final form.
func (ctx *planningContext) planSubqueriesAndCTEs(q *sqltree.QueryTree) error {
	if err := ctx.planCTEs(q); err != nil {
		return err
	}

	// When the caller asked for the query to be pushed down wholesale,
	// only CTEs are split off.
	if ctx.restriction.SubqueryPushdown {
		return nil
	}

	wrapFunctions(q)

	if err := ctx.planNestedSubqueries(q); err != nil {
		return err
	}

	if ctx.shouldPlanSetOperations(q) {
		if err := ctx.planSetOperationLeaves(q, q.SetOps); err != nil {
			return err
		}
	}

	if q.Having != nil && containsSubquery(q.Having) {
		if exprHasOuterRefs(q.Having) {
			return sdberrors.Unsupportedf("subqueries in HAVING cannot refer to an outer query")
		}
		if err := ctx.planAllSubqueries(q.Having); err != nil {
			return err
		}
	}

	if ctx.shouldPlanNonColocatedParts(q) {
		if err := ctx.planNonColocatedParts(q); err != nil {
			return err
		}
	}

	if hasOuterJoin(q) {
		if _, err := ctx.planRecurringOuterJoins(q, q.JoinTree); err != nil {
			return err
		}
	}

	// A query whose FROM produces recurring tuples executes once, not per
	// shard, so sublinks against distributed tables cannot be evaluated in
	// place and are materialized instead.
	if fromIsRecurring(ctx.restriction.Catalog, q) {
		if q.JoinTree != nil && q.JoinTree.Quals != nil {
			if err := ctx.planAllSubqueries(q.JoinTree.Quals); err != nil {
				return err
			}
		}
		for _, tle := range q.TargetList {
			if err := ctx.planAllSubqueries(tle.Expr); err != nil {
				return err
			}
		}
	}

	return nil
}

// planNestedSubqueries descends into every query nested one level below q
// (FROM subqueries and sublinks), fully processes it, and then decides
// whether the nested query itself must be split off.
func (ctx *planningContext) planNestedSubqueries(q *sqltree.QueryTree) error {
	return sqltree.WalkQueryChildren(func(node sqltree.SQLNode) (bool, error) {
		sub, ok := node.(*sqltree.QueryTree)
		if !ok {
			return true, nil
		}

		ctx.level++
		err := ctx.planSubqueriesAndCTEs(sub)
		ctx.level--
		if err != nil {
			return false, err
		}

		if ctx.shouldRecursivelyPlanSubquery(sub) {
			if err := ctx.planSubquery(sub); err != nil {
				return false, err
			}
		}
		// The nested query was processed by the recursive call above.
		return false, nil
	}, q)
}

// shouldRecursivelyPlanSubquery decides whether a fully processed nested
// query must be split off rather than pushed down with its parent.
func (ctx *planningContext) shouldRecursivelyPlanSubquery(sub *sqltree.QueryTree) bool {
	if ContainsReferencesToOuterQuery(sub) {
		// A correlated subquery cannot be executed on its own.
		return false
	}
	if !referencesClusterTable(ctx.restriction.Catalog, sub) {
		// The coordinator can evaluate it in place.
		return false
	}
	if !ctx.canPushdownSubquery(sub) {
		return true
	}
	// Pushdown-shaped, but its joins must be on distribution keys: either
	// the whole query already proved its keys equal, or the subquery's own
	// restrictions must.
	return !ctx.allDistributionKeysEqual &&
		!ctx.restriction.Equivalence.AllDistributionKeysEqual(sub)
}

// canPushdownSubquery reports whether the subquery can be distributed
// together with its parent query.
func (ctx *planningContext) canPushdownSubquery(sub *sqltree.QueryTree) bool {
	if referencesLocalTableOrMatView(ctx.restriction.Catalog, sub) {
		return false
	}
	if sub.HasLimit {
		return false
	}
	if sub.SetOps != nil {
		if setOpTreeHasNonUnion(sub.SetOps) {
			return false
		}
		if !ctx.restriction.Equivalence.SafeToPushdownUnion(sub) {
			return false
		}
	}
	return true
}

// shouldPlanSetOperations decides whether the query's set operation tree
// must have its distributed leaves split off. Top-level set operations are
// always decomposed; nested ones only when they cannot be pushed down.
func (ctx *planningContext) shouldPlanSetOperations(q *sqltree.QueryTree) bool {
	if q.SetOps == nil {
		return false
	}
	if ctx.level == 0 {
		return true
	}
	if setOpTreeHasNonUnion(q.SetOps) {
		return true
	}
	return !ctx.restriction.Equivalence.SafeToPushdownUnion(q)
}

// planSetOperationLeaves splits off every set operation leaf that reads a
// distributed table.
func (ctx *planningContext) planSetOperationLeaves(q *sqltree.QueryTree, node sqltree.SetOpNode) error {
	switch node := node.(type) {
	case *sqltree.SetOpExpr:
		if err := ctx.planSetOperationLeaves(q, node.Left); err != nil {
			return err
		}
		return ctx.planSetOperationLeaves(q, node.Right)
	case *sqltree.RangeTableRef:
		rte := q.EntryAt(node.Index)
		ref, ok := rte.Ref.(*sqltree.SubqueryRef)
		if !ok {
			return sdberrors.Bugf("set operation leaf %d is not a subquery", node.Index)
		}
		if !referencesDistributedTable(ctx.restriction.Catalog, ref.Query) {
			return nil
		}
		return ctx.planSubquery(ref.Query)
	default:
		return sdberrors.Bugf("unexpected set operation node %T", node)
	}
}

// planAllSubqueries splits off every subquery under the expression that
// reads a cluster table, without further conditions.
func (ctx *planningContext) planAllSubqueries(expr sqltree.Expr) error {
	if expr == nil {
		return nil
	}
	return sqltree.Walk(func(node sqltree.SQLNode) (bool, error) {
		sub, ok := node.(*sqltree.QueryTree)
		if !ok {
			return true, nil
		}
		if referencesClusterTable(ctx.restriction.Catalog, sub) {
			if err := ctx.planSubquery(sub); err != nil {
				return false, err
			}
		}
		return false, nil
	}, expr)
}

// shouldPlanNonColocatedParts decides whether the non-colocation pass can
// contribute anything: it is pointless when all distribution keys are
// provably equal, and impossible without at least two distributed parts.
func (ctx *planningContext) shouldPlanNonColocatedParts(q *sqltree.QueryTree) bool {
	if ctx.allDistributionKeysEqual {
		return false
	}
	return countDistributedParts(ctx.restriction.Catalog, q) > 1
}

// planNonColocatedParts anchors a colocation checker on the query and
// splits off every FROM-level part and WHERE sublink that does not join
// the anchor on its distribution key.
func (ctx *planningContext) planNonColocatedParts(q *sqltree.QueryTree) error {
	checker, ok := ctx.restriction.Equivalence.ColocationChecker(q)
	if !ok {
		// No anchor could be derived from the restrictions; later planner
		// stages will reject the query if it is truly unplannable.
		return nil
	}
	if q.JoinTree != nil {
		if err := ctx.planNonColocatedJoinNodes(q, checker, q.JoinTree); err != nil {
			return err
		}
		if q.JoinTree.Quals != nil {
			if err := ctx.planNonColocatedSublinks(checker, q.JoinTree.Quals); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ctx *planningContext) planNonColocatedJoinNodes(q *sqltree.QueryTree, checker planner.ColocationChecker, node sqltree.JoinTreeNode) error {
	switch node := node.(type) {
	case *sqltree.FromExpr:
		for _, sub := range node.List {
			if err := ctx.planNonColocatedJoinNodes(q, checker, sub); err != nil {
				return err
			}
		}
		return nil
	case *sqltree.JoinExpr:
		if err := ctx.planNonColocatedJoinNodes(q, checker, node.Left); err != nil {
			return err
		}
		return ctx.planNonColocatedJoinNodes(q, checker, node.Right)
	case *sqltree.RangeTableRef:
		rte := q.EntryAt(node.Index)
		switch ref := rte.Ref.(type) {
		case *sqltree.SubqueryRef:
			if ContainsReferencesToOuterQuery(ref.Query) {
				return nil
			}
			if !referencesDistributedTable(ctx.restriction.Catalog, ref.Query) {
				return nil
			}
			if checker.SubqueryColocated(ref.Query) {
				return nil
			}
			return ctx.planSubquery(ref.Query)
		case *sqltree.RelationRef:
			if !isDistributedRelation(ctx.restriction.Catalog, ref) {
				return nil
			}
			if checker.RelationColocated(ref.Relation) {
				return nil
			}
			return ctx.planWrappedRelation(rte, ref)
		default:
			return nil
		}
	default:
		return sdberrors.Bugf("unexpected join tree node %T", node)
	}
}

func (ctx *planningContext) planNonColocatedSublinks(checker planner.ColocationChecker, quals sqltree.Expr) error {
	return sqltree.Walk(func(node sqltree.SQLNode) (bool, error) {
		sublink, ok := node.(*sqltree.Sublink)
		if !ok {
			return true, nil
		}
		sub := sublink.Query
		if ContainsReferencesToOuterQuery(sub) {
			return false, nil
		}
		if !referencesDistributedTable(ctx.restriction.Catalog, sub) {
			return false, nil
		}
		if checker.SubqueryColocated(sub) {
			return false, nil
		}
		if err := ctx.planSubquery(sub); err != nil {
			return false, err
		}
		return false, nil
	}, quals)
}

// planSubquery splits off the subquery as a subplan and overwrites it in
// place with the query reading the subplan's result. A query referencing
// its outer query cannot run standalone and is left inline.
func (ctx *planningContext) planSubquery(sub *sqltree.QueryTree) error {
	if ContainsReferencesToOuterQuery(sub) {
		return nil
	}
	resultQuery, err := ctx.createSubPlan(sub, nil)
	if err != nil {
		return err
	}
	*sub = *resultQuery
	return nil
}

// createSubPlan plans a clone of the fragment as the next subplan and
// returns the query that reads its result. The fragment itself is left
// untouched; overwriting or substituting it is the caller's business.
func (ctx *planningContext) createSubPlan(fragment *sqltree.QueryTree, columnAliases []string) (*sqltree.QueryTree, error) {
	subPlanID := uint32(len(ctx.subPlans) + 1)
	resultID := ResultID(ctx.planID, subPlanID)

	if log.V(2) {
		log.Infof("generating subplan %s for: %s", resultID, sqltree.String(fragment))
	}

	planQuery := sqltree.CloneQueryTree(fragment)
	var opts planner.CursorOption
	if ContainsResultRead(planQuery) {
		// The fragment reads results of earlier subplans, which exist only
		// on nodes participating in distributed execution.
		opts |= planner.ForceDistributed
	}
	plan, err := ctx.restriction.Planner.PlanFragment(planQuery, opts)
	if err != nil {
		return nil, err
	}
	ctx.subPlans = append(ctx.subPlans, &planner.DistributedSubPlan{
		SubPlanID: subPlanID,
		Query:     planQuery,
		Plan:      plan,
	})

	// A modifying fragment exposes its RETURNING list; that is what a
	// reference to it selects from.
	targetList := fragment.TargetList
	if len(fragment.Returning) > 0 {
		targetList = fragment.Returning
	}
	return BuildResultReadQuery(targetList, columnAliases, resultID), nil
}
