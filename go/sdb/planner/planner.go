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

// Package planner holds the contracts between the distributed planner's
// passes: the restriction context carried through planning, the subplan
// descriptor produced for decomposed query fragments, and the interfaces
// the recursive decomposition pass uses to call back into the full planner
// and the restriction equivalence machinery.
package planner

import (
	"shardine.io/shardine/go/sdb/shardmeta"
	"shardine.io/shardine/go/sdb/sqltree"
)

// CursorOption carries execution options for a planned fragment.
type CursorOption uint32

const (
	// ForceDistributed requires the fragment to be planned for distributed
	// execution even when it reads no distributed relation. Fragments that
	// read intermediate results need this: the results only exist on the
	// nodes participating in the distributed plan.
	ForceDistributed CursorOption = 1 << iota
)

// Plan is an executable plan for one query fragment. The recursive
// decomposition pass treats plans as opaque.
type Plan interface {
	// Fragment returns the query the plan was built from.
	Fragment() *sqltree.QueryTree
}

// SingleQueryPlanner plans one self-contained query fragment. The full
// distributed planner implements it; decomposition calls back through it
// for every fragment it splits off.
type SingleQueryPlanner interface {
	PlanFragment(q *sqltree.QueryTree, opts CursorOption) (Plan, error)
}

// EquivalenceOracle answers colocation questions derived from relation
// restrictions collected during earlier planning passes.
type EquivalenceOracle interface {
	// AllDistributionKeysEqual reports whether every distributed relation
	// in the query is provably restricted to equal distribution keys.
	AllDistributionKeysEqual(q *sqltree.QueryTree) bool
	// SafeToPushdownUnion reports whether a UNION in the query tree keeps
	// the distribution key position-aligned across all operands.
	SafeToPushdownUnion(q *sqltree.QueryTree) bool
	// ColocationChecker builds a checker anchored on the query's
	// restrictions. It returns false when no anchor can be derived, in
	// which case the non-colocation pass is skipped.
	ColocationChecker(q *sqltree.QueryTree) (ColocationChecker, bool)
}

// ColocationChecker decides, against a fixed anchor, whether parts of a
// query are joined on distribution keys with that anchor.
type ColocationChecker interface {
	// SubqueryColocated reports whether the subquery joins the anchor on
	// distribution keys.
	SubqueryColocated(sub *sqltree.QueryTree) bool
	// RelationColocated reports whether the base relation joins the anchor
	// on distribution keys.
	RelationColocated(rel sqltree.ObjectID) bool
}

// RelationOracle exposes per-relation restriction information needed when a
// base relation must be wrapped into a subquery.
type RelationOracle interface {
	// RequiredColumns returns the 1-based attribute numbers of the
	// relation's columns used anywhere in the query.
	RequiredColumns(rel sqltree.ObjectID) []int
	// PushableFilters returns the conjunction of filters on the relation
	// that may be evaluated inside a wrapping subquery, or nil.
	PushableFilters(rel sqltree.ObjectID) sqltree.Expr
}

// RestrictionContext bundles everything a decomposition pass needs beyond
// the query tree itself.
type RestrictionContext struct {
	Catalog     shardmeta.Catalog
	Equivalence EquivalenceOracle
	Relations   RelationOracle
	Planner     SingleQueryPlanner

	// SubqueryPushdown is set when the whole query was requested to be
	// pushed down as-is, which disables most decomposition.
	SubqueryPushdown bool
}

// DistributedSubPlan is one decomposed fragment: the fragment's plan plus
// the identifier under which its result is made readable by the rest of
// the query.
type DistributedSubPlan struct {
	// SubPlanID is 1-based and unique within the owning plan.
	SubPlanID uint32
	// Query is a clone of the fragment as it was planned. The original
	// tree is overwritten in place by the result reference, so the clone
	// is the only surviving copy of the fragment.
	Query *sqltree.QueryTree
	Plan  Plan

	// DurationEstimate and SizeEstimate are filled in by costing, not by
	// decomposition.
	DurationEstimate float64
	SizeEstimate     int64
}
