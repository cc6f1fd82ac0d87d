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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardine.io/shardine/go/sdb/planner"
	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/shardmeta"
	"shardine.io/shardine/go/sdb/sqltree"
)

const (
	distOrders sqltree.ObjectID = 1
	distLines  sqltree.ObjectID = 2
	refNations sqltree.ObjectID = 3
	localNotes sqltree.ObjectID = 4
)

type fakePlan struct {
	fragment *sqltree.QueryTree
}

func (p *fakePlan) Fragment() *sqltree.QueryTree { return p.fragment }

type fakePlanner struct {
	t         *testing.T
	fragments []*sqltree.QueryTree
	opts      []planner.CursorOption
}

func (p *fakePlanner) PlanFragment(q *sqltree.QueryTree, opts planner.CursorOption) (planner.Plan, error) {
	assert.True(p.t, GeneratingSubplans())
	p.fragments = append(p.fragments, q)
	p.opts = append(p.opts, opts)
	return &fakePlan{fragment: q}, nil
}

type fakeEquivalence struct {
	allKeysEqual bool
	// keysEqualFor overrides allKeysEqual per query when set.
	keysEqualFor func(*sqltree.QueryTree) bool
	safeUnion    bool
	anchor       sqltree.ObjectID
	hasAnchor    bool
	catalog      shardmeta.Catalog
}

func (e *fakeEquivalence) AllDistributionKeysEqual(q *sqltree.QueryTree) bool {
	if e.keysEqualFor != nil {
		return e.keysEqualFor(q)
	}
	return e.allKeysEqual
}

func (e *fakeEquivalence) SafeToPushdownUnion(*sqltree.QueryTree) bool { return e.safeUnion }

func (e *fakeEquivalence) ColocationChecker(*sqltree.QueryTree) (planner.ColocationChecker, bool) {
	if !e.hasAnchor {
		return nil, false
	}
	return &fakeChecker{anchor: e.anchor}, true
}

// fakeChecker treats everything reading the anchor relation as colocated.
type fakeChecker struct {
	anchor sqltree.ObjectID
}

func (c *fakeChecker) SubqueryColocated(sub *sqltree.QueryTree) bool {
	return referencesRelation(sub, c.anchor)
}

func (c *fakeChecker) RelationColocated(rel sqltree.ObjectID) bool {
	return rel == c.anchor
}

type fakeRelations struct {
	required map[sqltree.ObjectID][]int
	filters  map[sqltree.ObjectID]sqltree.Expr
}

func (r *fakeRelations) RequiredColumns(rel sqltree.ObjectID) []int {
	if cols, ok := r.required[rel]; ok {
		return cols
	}
	return []int{1}
}

func (r *fakeRelations) PushableFilters(rel sqltree.ObjectID) sqltree.Expr {
	return r.filters[rel]
}

type env struct {
	catalog *shardmeta.MapCatalog
	planner *fakePlanner
	equiv   *fakeEquivalence
	rels    *fakeRelations
	rctx    *planner.RestrictionContext
}

func newEnv(t *testing.T) *env {
	catalog := shardmeta.NewMapCatalog()
	catalog.AddTable(distOrders, shardmeta.KindDistributed,
		sqltree.ColumnDef{Name: "id", Type: sqltree.TypeInt8},
		sqltree.ColumnDef{Name: "total", Type: sqltree.TypeNumeric})
	catalog.AddTable(distLines, shardmeta.KindDistributed,
		sqltree.ColumnDef{Name: "id", Type: sqltree.TypeInt8},
		sqltree.ColumnDef{Name: "qty", Type: sqltree.TypeInt4})
	catalog.AddTable(refNations, shardmeta.KindReference,
		sqltree.ColumnDef{Name: "id", Type: sqltree.TypeInt8},
		sqltree.ColumnDef{Name: "name", Type: sqltree.TypeText})
	catalog.AddTable(localNotes, shardmeta.KindLocal,
		sqltree.ColumnDef{Name: "id", Type: sqltree.TypeInt8})

	fp := &fakePlanner{t: t}
	equiv := &fakeEquivalence{allKeysEqual: true, safeUnion: true, catalog: catalog}
	rels := &fakeRelations{
		required: map[sqltree.ObjectID][]int{},
		filters:  map[sqltree.ObjectID]sqltree.Expr{},
	}
	return &env{
		catalog: catalog,
		planner: fp,
		equiv:   equiv,
		rels:    rels,
		rctx: &planner.RestrictionContext{
			Catalog:     catalog,
			Equivalence: equiv,
			Relations:   rels,
			Planner:     fp,
		},
	}
}

func referencesRelation(node sqltree.SQLNode, id sqltree.ObjectID) bool {
	return sqltree.FindNodeMatching(func(n sqltree.SQLNode) bool {
		rel, ok := n.(*sqltree.RelationRef)
		return ok && rel.Relation == id
	}, node)
}

// selectFrom builds SELECT id FROM <relation>.
func selectFrom(id sqltree.ObjectID, name string) *sqltree.QueryTree {
	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	idx := q.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.RelationRef{Relation: id, Name: name}})
	q.JoinTree = sqltree.SingleEntryFrom(idx)
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: idx, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}
	return q
}

// selectFromSubqueries builds SELECT s1.id FROM (sub1) s1, (sub2) s2, ...
func selectFromSubqueries(subs ...*sqltree.QueryTree) *sqltree.QueryTree {
	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	from := &sqltree.FromExpr{}
	for i, sub := range subs {
		idx := q.AddEntry(&sqltree.RangeTableEntry{
			Alias: "s" + string(rune('1'+i)),
			Ref:   &sqltree.SubqueryRef{Query: sub},
		})
		from.List = append(from.List, sqltree.NewRangeTableRef(idx))
	}
	q.JoinTree = from
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}
	return q
}

func entryQuery(t *testing.T, q *sqltree.QueryTree, index int) *sqltree.QueryTree {
	t.Helper()
	ref, ok := q.EntryAt(index).Ref.(*sqltree.SubqueryRef)
	require.True(t, ok, "entry %d is %T, not a subquery", index, q.EntryAt(index).Ref)
	return ref.Query
}

func TestCTEReferencedTwice(t *testing.T) {
	e := newEnv(t)

	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:     "top_orders",
		Query:    selectFrom(distOrders, "orders"),
		RefCount: 2,
	}}
	i1 := q.AddEntry(&sqltree.RangeTableEntry{Alias: "t1", Ref: &sqltree.CTERef{Name: "top_orders"}})
	i2 := q.AddEntry(&sqltree.RangeTableEntry{Alias: "t2", Ref: &sqltree.CTERef{Name: "top_orders"}})
	q.JoinTree = &sqltree.FromExpr{List: []sqltree.JoinTreeNode{
		sqltree.NewRangeTableRef(i1), sqltree.NewRangeTableRef(i2),
	}}
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: i1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	subPlans, err := Decompose(q, 7, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.Equal(t, uint32(1), subPlans[0].SubPlanID)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
	assert.Empty(t, q.CTEs)

	read1 := entryQuery(t, q, i1)
	read2 := entryQuery(t, q, i2)
	require.NotSame(t, read1, read2)
	assert.Contains(t, sqltree.String(read1), "read_intermediate_result('7_1', 'binary')")
	assert.Equal(t, sqltree.String(read1), sqltree.String(read2))
	assert.False(t, referencesRelation(q, distOrders))
}

func TestUnreferencedSelectCTESkipped(t *testing.T) {
	e := newEnv(t)

	q := selectFrom(distOrders, "orders")
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:  "unused",
		Query: selectFrom(distLines, "order_lines"),
	}}

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
	assert.Empty(t, q.CTEs)
}

func TestUnreferencedModifyingCTEPlanned(t *testing.T) {
	e := newEnv(t)

	body := selectFrom(distLines, "order_lines")
	body.Command = sqltree.DeleteCommand
	q := selectFrom(distOrders, "orders")
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:      "purge",
		Query:     body,
		Modifying: true,
	}}

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distLines))
}

func TestModifyingCTEReadsReturningColumns(t *testing.T) {
	e := newEnv(t)

	body := selectFrom(distLines, "order_lines")
	body.Command = sqltree.DeleteCommand
	body.TargetList = nil
	body.Returning = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:      "purged",
		Query:     body,
		RefCount:  1,
		Modifying: true,
	}}
	idx := q.AddEntry(&sqltree.RangeTableEntry{Alias: "purged", Ref: &sqltree.CTERef{Name: "purged"}})
	q.JoinTree = sqltree.SingleEntryFrom(idx)
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: idx, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	subPlans, err := Decompose(q, 3, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	read := entryQuery(t, q, idx)
	rendered := sqltree.String(read)
	assert.Contains(t, rendered, "read_intermediate_result('3_1'")
	// The reference selects from the RETURNING list, not the target list.
	assert.Contains(t, rendered, "intermediate_result(id bigint)")
}

func TestRecursiveCTEUnsupported(t *testing.T) {
	e := newEnv(t)

	q := selectFrom(distOrders, "orders")
	q.HasRecursiveCTE = true
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:     "r",
		Query:    selectFrom(distOrders, "orders"),
		RefCount: 1,
	}}

	_, err := Decompose(q, 1, e.rctx)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Unimplemented, sdberrors.Code(err))
	assert.Contains(t, err.Error(), "recursive CTEs")
}

func TestCorrelatedCTEUnsupported(t *testing.T) {
	e := newEnv(t)

	body := selectFrom(distLines, "order_lines")
	body.JoinTree.Quals = &sqltree.Comparison{
		Op:    "=",
		Left:  &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Right: &sqltree.ColumnRef{RTIndex: 1, Column: 1, LevelsUp: 1, Name: "id", Type: sqltree.TypeInt8},
	}
	q := selectFrom(distOrders, "orders")
	q.CTEs = []*sqltree.CommonTableExpr{{Name: "c", Query: body, RefCount: 1}}
	q.RangeTable = append(q.RangeTable, &sqltree.RangeTableEntry{Ref: &sqltree.CTERef{Name: "c"}})

	_, err := Decompose(q, 1, e.rctx)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Unimplemented, sdberrors.Code(err))
}

func TestChainedCTEsForceDistributedPlanning(t *testing.T) {
	e := newEnv(t)

	first := selectFrom(distOrders, "orders")
	second := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	idx := second.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.CTERef{Name: "first", LevelsUp: 1}})
	second.JoinTree = sqltree.SingleEntryFrom(idx)
	second.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: idx, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	q.CTEs = []*sqltree.CommonTableExpr{
		{Name: "first", Query: first, RefCount: 1},
		{Name: "second", Query: second, RefCount: 1},
	}
	mainIdx := q.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.CTERef{Name: "second"}})
	q.JoinTree = sqltree.SingleEntryFrom(mainIdx)
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: mainIdx, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	subPlans, err := Decompose(q, 9, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 2)

	// The second CTE's fragment reads the first one's result, which only
	// exists on nodes of the distributed plan.
	require.Len(t, e.planner.opts, 2)
	assert.Equal(t, planner.CursorOption(0), e.planner.opts[0])
	assert.Equal(t, planner.ForceDistributed, e.planner.opts[1])
	assert.Contains(t, sqltree.String(subPlans[1].Query), "read_intermediate_result('9_1'")
}

func TestTopLevelSetOperationDecomposed(t *testing.T) {
	e := newEnv(t)

	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	left := q.AddEntry(&sqltree.RangeTableEntry{Alias: "a", Ref: &sqltree.SubqueryRef{Query: selectFrom(distOrders, "orders")}})
	right := q.AddEntry(&sqltree.RangeTableEntry{Alias: "b", Ref: &sqltree.SubqueryRef{Query: selectFrom(distLines, "order_lines")}})
	q.SetOps = &sqltree.SetOpExpr{Op: sqltree.UnionOp, Left: sqltree.NewRangeTableRef(left), Right: sqltree.NewRangeTableRef(right)}
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: left, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	subPlans, err := Decompose(q, 3, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 2)
	assert.Equal(t, uint32(1), subPlans[0].SubPlanID)
	assert.Equal(t, uint32(2), subPlans[1].SubPlanID)
	assert.Contains(t, sqltree.String(entryQuery(t, q, left)), "read_intermediate_result('3_1'")
	assert.Contains(t, sqltree.String(entryQuery(t, q, right)), "read_intermediate_result('3_2'")
}

func nestedUnion(t *testing.T) *sqltree.QueryTree {
	t.Helper()
	union := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	left := union.AddEntry(&sqltree.RangeTableEntry{Alias: "a", Ref: &sqltree.SubqueryRef{Query: selectFrom(distOrders, "orders")}})
	right := union.AddEntry(&sqltree.RangeTableEntry{Alias: "b", Ref: &sqltree.SubqueryRef{Query: selectFrom(distLines, "order_lines")}})
	union.SetOps = &sqltree.SetOpExpr{Op: sqltree.UnionOp, Left: sqltree.NewRangeTableRef(left), Right: sqltree.NewRangeTableRef(right)}
	union.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: left, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}
	return selectFromSubqueries(union)
}

func TestNestedColocatedUnionPushedDown(t *testing.T) {
	e := newEnv(t)
	q := nestedUnion(t)

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
	assert.True(t, referencesRelation(q, distOrders))
}

func TestNestedNonColocatedUnionDecomposed(t *testing.T) {
	e := newEnv(t)
	e.equiv.safeUnion = false
	q := nestedUnion(t)

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 2)
	assert.False(t, referencesRelation(q, distOrders))
	assert.False(t, referencesRelation(q, distLines))
}

func TestNestedIntersectDecomposed(t *testing.T) {
	e := newEnv(t)
	q := nestedUnion(t)
	union := entryQuery(t, q, 1)
	union.SetOps.(*sqltree.SetOpExpr).Op = sqltree.IntersectOp

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Len(t, subPlans, 2)
}

func TestNonColocatedSubqueryDecomposed(t *testing.T) {
	e := newEnv(t)
	// Keys are provably equal within each subquery but not across the join.
	e.equiv.keysEqualFor = func(q *sqltree.QueryTree) bool {
		return !(referencesRelation(q, distOrders) && referencesRelation(q, distLines))
	}
	e.equiv.hasAnchor = true
	e.equiv.anchor = distOrders

	q := selectFromSubqueries(selectFrom(distOrders, "orders"), selectFrom(distLines, "order_lines"))

	subPlans, err := Decompose(q, 4, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distLines))
	// The anchored side stays in place.
	assert.True(t, referencesRelation(entryQuery(t, q, 1), distOrders))
	assert.Contains(t, sqltree.String(entryQuery(t, q, 2)), "read_intermediate_result('4_1'")
}

func TestPushdownableSubqueryWithUnequalKeysPlanned(t *testing.T) {
	e := newEnv(t)
	// The subquery is pushdown-shaped, but its join is not on the
	// distribution keys.
	e.equiv.keysEqualFor = func(*sqltree.QueryTree) bool { return false }

	sub := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	li := sub.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.RelationRef{Relation: distOrders, Name: "orders"}})
	ri := sub.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.RelationRef{Relation: distLines, Name: "order_lines"}})
	sub.JoinTree = &sqltree.FromExpr{List: []sqltree.JoinTreeNode{&sqltree.JoinExpr{
		Type:  sqltree.InnerJoin,
		Left:  sqltree.NewRangeTableRef(li),
		Right: sqltree.NewRangeTableRef(ri),
	}}}
	sub.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: li, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}
	q := selectFromSubqueries(sub)

	subPlans, err := Decompose(q, 9, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
	assert.True(t, referencesRelation(subPlans[0].Query, distLines))
	assert.Contains(t, sqltree.String(entryQuery(t, q, 1)), "read_intermediate_result('9_1'")
}

func TestNonColocatedBareRelationWrapped(t *testing.T) {
	e := newEnv(t)
	e.equiv.allKeysEqual = false
	e.equiv.hasAnchor = true
	e.equiv.anchor = distOrders
	e.rels.required[distLines] = []int{2}
	e.rels.filters[distLines] = &sqltree.Comparison{
		Op:    ">",
		Left:  &sqltree.ColumnRef{RTIndex: 2, Column: 2, Name: "qty", Type: sqltree.TypeInt4},
		Right: &sqltree.Const{Type: sqltree.TypeInt4, Val: "5"},
	}

	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	left := q.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.RelationRef{Relation: distOrders, Name: "orders"}})
	right := q.AddEntry(&sqltree.RangeTableEntry{Ref: &sqltree.RelationRef{Relation: distLines, Name: "order_lines"}})
	q.JoinTree = &sqltree.FromExpr{List: []sqltree.JoinTreeNode{&sqltree.JoinExpr{
		Type:  sqltree.InnerJoin,
		Left:  sqltree.NewRangeTableRef(left),
		Right: sqltree.NewRangeTableRef(right),
	}}}
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: left, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}

	subPlans, err := Decompose(q, 6, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)

	// The fragment selects only the required column, with the pushable
	// filter pointed at the wrapped relation.
	fragment := subPlans[0].Query
	assert.True(t, referencesRelation(fragment, distLines))
	require.Len(t, fragment.TargetList, 1)
	assert.Equal(t, "qty", fragment.TargetList[0].Name)
	require.NotNil(t, fragment.JoinTree.Quals)
	cmp, ok := fragment.JoinTree.Quals.(*sqltree.Comparison)
	require.True(t, ok)
	assert.Equal(t, 1, cmp.Left.(*sqltree.ColumnRef).RTIndex)

	// The outer wrapper restores the full column list, exposing the
	// unused id column as NULL.
	outer := entryQuery(t, q, right)
	require.Len(t, outer.TargetList, 2)
	nullCol, ok := outer.TargetList[0].Expr.(*sqltree.Const)
	require.True(t, ok)
	assert.True(t, nullCol.Null)
	assert.Equal(t, "id", outer.TargetList[0].Name)
	assert.Equal(t, "qty", outer.TargetList[1].Name)
	assert.Contains(t, sqltree.String(outer), "read_intermediate_result('6_1'")

	// The anchored relation is untouched.
	_, ok = q.EntryAt(left).Ref.(*sqltree.RelationRef)
	assert.True(t, ok)
}

func outerJoinQuery(joinType sqltree.JoinType, left, right sqltree.TableRef) *sqltree.QueryTree {
	q := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	li := q.AddEntry(&sqltree.RangeTableEntry{Ref: left})
	ri := q.AddEntry(&sqltree.RangeTableEntry{Ref: right})
	q.JoinTree = &sqltree.FromExpr{List: []sqltree.JoinTreeNode{&sqltree.JoinExpr{
		Type:  joinType,
		Left:  sqltree.NewRangeTableRef(li),
		Right: sqltree.NewRangeTableRef(ri),
	}}}
	q.TargetList = []*sqltree.TargetEntry{{
		Expr: &sqltree.ColumnRef{RTIndex: li, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Name: "id",
	}}
	return q
}

func TestRecurringLeftJoinForcesDistributedSide(t *testing.T) {
	e := newEnv(t)

	q := outerJoinQuery(sqltree.LeftJoin,
		&sqltree.RelationRef{Relation: refNations, Name: "nations"},
		&sqltree.RelationRef{Relation: distOrders, Name: "orders"})

	subPlans, err := Decompose(q, 2, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
	assert.Contains(t, sqltree.String(entryQuery(t, q, 2)), "read_intermediate_result('2_1'")
	_, ok := q.EntryAt(1).Ref.(*sqltree.RelationRef)
	assert.True(t, ok)
}

func TestDistributedLeftJoinRecurringUntouched(t *testing.T) {
	e := newEnv(t)

	q := outerJoinQuery(sqltree.LeftJoin,
		&sqltree.RelationRef{Relation: distOrders, Name: "orders"},
		&sqltree.RelationRef{Relation: refNations, Name: "nations"})

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
}

func TestLocalTableSideOfRecurringJoinUntouched(t *testing.T) {
	e := newEnv(t)

	// Both sides recur: the local table never expands per shard either.
	q := outerJoinQuery(sqltree.LeftJoin,
		&sqltree.RelationRef{Relation: refNations, Name: "nations"},
		&sqltree.RelationRef{Relation: localNotes, Name: "notes"})

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
	_, ok := q.EntryAt(2).Ref.(*sqltree.RelationRef)
	assert.True(t, ok)
}

func TestRecurringRightJoinForcesDistributedSide(t *testing.T) {
	e := newEnv(t)

	q := outerJoinQuery(sqltree.RightJoin,
		&sqltree.RelationRef{Relation: distOrders, Name: "orders"},
		&sqltree.RelationRef{Relation: refNations, Name: "nations"})

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
}

func TestRecurringFullJoinForcesDistributedSide(t *testing.T) {
	e := newEnv(t)

	q := outerJoinQuery(sqltree.FullJoin,
		&sqltree.RelationRef{Relation: refNations, Name: "nations"},
		&sqltree.RelationRef{Relation: distOrders, Name: "orders"})

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
}

func TestDistributedSubquerySideOfRecurringJoin(t *testing.T) {
	e := newEnv(t)

	q := outerJoinQuery(sqltree.LeftJoin,
		&sqltree.RelationRef{Relation: refNations, Name: "nations"},
		&sqltree.SubqueryRef{Query: selectFrom(distOrders, "orders")})
	q.EntryAt(2).Alias = "o"

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.Contains(t, sqltree.String(entryQuery(t, q, 2)), "read_intermediate_result('1_1'")
}

func TestHavingSublinkPlanned(t *testing.T) {
	e := newEnv(t)

	q := selectFrom(distOrders, "orders")
	q.Having = &sqltree.Comparison{
		Op:   ">",
		Left: &sqltree.Aggref{Name: "sum", Type: sqltree.TypeNumeric},
		Right: &sqltree.Sublink{
			LinkType: sqltree.ExprSublink,
			Query:    selectFrom(distLines, "order_lines"),
		},
	}

	subPlans, err := Decompose(q, 8, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distLines))
	assert.Contains(t, sqltree.String(q.Having), "read_intermediate_result('8_1'")
}

func TestCorrelatedHavingSublinkUnsupported(t *testing.T) {
	e := newEnv(t)

	correlated := selectFrom(distLines, "order_lines")
	correlated.JoinTree.Quals = &sqltree.Comparison{
		Op:    "=",
		Left:  &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Right: &sqltree.ColumnRef{RTIndex: 1, Column: 1, LevelsUp: 1, Name: "id", Type: sqltree.TypeInt8},
	}
	q := selectFrom(distOrders, "orders")
	q.Having = &sqltree.Sublink{LinkType: sqltree.ExistsSublink, Query: correlated}

	_, err := Decompose(q, 1, e.rctx)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Unimplemented, sdberrors.Code(err))
	assert.Contains(t, err.Error(), "HAVING")
}

func TestRecurringFromMaterializesWhereSublink(t *testing.T) {
	e := newEnv(t)

	q := selectFrom(refNations, "nations")
	q.JoinTree.Quals = &sqltree.Sublink{
		LinkType: sqltree.AnySublink,
		Test:     &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Query:    selectFrom(distOrders, "orders"),
	}

	subPlans, err := Decompose(q, 5, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, referencesRelation(subPlans[0].Query, distOrders))
	assert.Contains(t, sqltree.String(q), "read_intermediate_result('5_1'")
}

func TestCorrelatedSublinkUnderRecurringFromLeftInline(t *testing.T) {
	e := newEnv(t)

	correlated := selectFrom(distOrders, "orders")
	correlated.JoinTree.Quals = &sqltree.Comparison{
		Op:    "=",
		Left:  &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Right: &sqltree.ColumnRef{RTIndex: 1, Column: 1, LevelsUp: 1, Name: "id", Type: sqltree.TypeInt8},
	}
	q := selectFrom(refNations, "nations")
	q.TargetList = append(q.TargetList, &sqltree.TargetEntry{
		Expr: &sqltree.Sublink{LinkType: sqltree.ExprSublink, Query: correlated},
		Name: "order_id",
	})

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	// The sublink depends on the nations row, so it cannot run standalone.
	assert.Empty(t, subPlans)
	assert.True(t, referencesRelation(q, distOrders))
}

func TestSubqueryWithLimitPlanned(t *testing.T) {
	e := newEnv(t)

	limited := selectFrom(distOrders, "orders")
	limited.HasLimit = true
	q := selectFromSubqueries(limited)

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 1)
	assert.True(t, subPlans[0].Query.HasLimit)
	assert.False(t, referencesRelation(q, distOrders))
}

func TestCorrelatedSubqueryNotPlanned(t *testing.T) {
	e := newEnv(t)

	correlated := selectFrom(distOrders, "orders")
	correlated.HasLimit = true
	correlated.JoinTree.Quals = &sqltree.Comparison{
		Op:    "=",
		Left:  &sqltree.ColumnRef{RTIndex: 1, Column: 1, Name: "id", Type: sqltree.TypeInt8},
		Right: &sqltree.ColumnRef{RTIndex: 1, Column: 1, LevelsUp: 1, Name: "id", Type: sqltree.TypeInt8},
	}
	q := selectFromSubqueries(correlated)
	q.EntryAt(1).Lateral = true

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
	assert.True(t, referencesRelation(q, distOrders))
}

func TestLocalOnlySubqueryNotPlanned(t *testing.T) {
	e := newEnv(t)

	local := selectFrom(localNotes, "notes")
	local.HasLimit = true
	q := selectFromSubqueries(local)

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, subPlans)
}

func TestSubqueryPushdownOnlyPlansCTEs(t *testing.T) {
	e := newEnv(t)
	e.rctx.SubqueryPushdown = true

	limited := selectFrom(distOrders, "orders")
	limited.HasLimit = true
	q := selectFromSubqueries(limited)
	q.CTEs = []*sqltree.CommonTableExpr{{
		Name:     "c",
		Query:    selectFrom(distLines, "order_lines"),
		RefCount: 0,
	}}

	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	// The LIMIT subquery stays: only CTE materialization runs.
	assert.Empty(t, subPlans)
	assert.True(t, referencesRelation(q, distOrders))
}

func TestDecomposeIsIdempotent(t *testing.T) {
	e := newEnv(t)

	q := nestedUnion(t)
	e.equiv.safeUnion = false
	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	require.Len(t, subPlans, 2)

	again, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestGeneratingSubplans(t *testing.T) {
	assert.False(t, GeneratingSubplans())
	// The fake planner asserts GeneratingSubplans from inside the pass.
}

func TestWrapFunctionsInFrom(t *testing.T) {
	fn := &sqltree.FunctionRef{
		Func:    &sqltree.FuncExpr{Name: "generate_series", ReturnsSet: true, Type: sqltree.TypeInt8},
		Columns: []sqltree.ColumnDef{{Name: "i", Type: sqltree.TypeInt8}},
	}

	// A lone function scan keeps its shape.
	single := &sqltree.QueryTree{Command: sqltree.SelectCommand}
	idx := single.AddEntry(&sqltree.RangeTableEntry{Alias: "g", Ref: fn})
	single.JoinTree = sqltree.SingleEntryFrom(idx)
	wrapFunctions(single)
	_, stillFunc := single.EntryAt(1).Ref.(*sqltree.FunctionRef)
	assert.True(t, stillFunc)

	// Joined with another entry it gets wrapped.
	joined := selectFrom(distOrders, "orders")
	fnIdx := joined.AddEntry(&sqltree.RangeTableEntry{Alias: "g", Ref: &sqltree.FunctionRef{
		Func:    fn.Func,
		Columns: fn.Columns,
	}})
	joined.JoinTree.List = append(joined.JoinTree.List, sqltree.NewRangeTableRef(fnIdx))
	wrapFunctions(joined)
	wrapped, ok := joined.EntryAt(fnIdx).Ref.(*sqltree.SubqueryRef)
	require.True(t, ok)
	require.Len(t, wrapped.Query.TargetList, 1)
	assert.Equal(t, "i", wrapped.Query.TargetList[0].Name)

	// LATERAL calls stay in place.
	lateral := selectFrom(distOrders, "orders")
	latIdx := lateral.AddEntry(&sqltree.RangeTableEntry{Alias: "g", Lateral: true, Ref: &sqltree.FunctionRef{
		Func:    fn.Func,
		Columns: fn.Columns,
	}})
	lateral.JoinTree.List = append(lateral.JoinTree.List, sqltree.NewRangeTableRef(latIdx))
	wrapFunctions(lateral)
	_, stillFunc = lateral.EntryAt(latIdx).Ref.(*sqltree.FunctionRef)
	assert.True(t, stillFunc)
}

func TestResultID(t *testing.T) {
	assert.Equal(t, "5_1", ResultID(5, 1))
	assert.Equal(t, "123_42", ResultID(123, 42))
}

func TestBuildResultReadQueryFormats(t *testing.T) {
	binary := BuildResultReadQuery([]*sqltree.TargetEntry{
		{Expr: &sqltree.ColumnRef{Name: "id", Type: sqltree.TypeInt8}, Name: "id"},
	}, nil, "1_1")
	assert.Contains(t, sqltree.String(binary), "'binary'")

	text := BuildResultReadQuery([]*sqltree.TargetEntry{
		{Expr: &sqltree.ColumnRef{Name: "doc", Type: sqltree.TypeJSON}, Name: "doc"},
	}, nil, "1_1")
	assert.Contains(t, sqltree.String(text), "'text'")

	aliased := BuildResultReadQuery([]*sqltree.TargetEntry{
		{Expr: &sqltree.ColumnRef{Name: "id", Type: sqltree.TypeInt8}, Name: "id"},
	}, []string{"order_id"}, "1_1")
	require.Len(t, aliased.TargetList, 1)
	assert.Equal(t, "order_id", aliased.TargetList[0].Name)
}

func TestBuildResultsReadArrayQuery(t *testing.T) {
	q := BuildResultsReadArrayQuery([]*sqltree.TargetEntry{
		{Expr: &sqltree.ColumnRef{Name: "id", Type: sqltree.TypeInt8}, Name: "id"},
	}, nil, []string{"1_1", "1_2"})
	rendered := sqltree.String(q)
	assert.Contains(t, rendered, "read_intermediate_results")
	assert.Contains(t, rendered, "'1_1'")
	assert.Contains(t, rendered, "'1_2'")
}

func TestBuildEmptyResultQuery(t *testing.T) {
	q := BuildEmptyResultQuery([]*sqltree.TargetEntry{
		{Expr: &sqltree.ColumnRef{Name: "id", Type: sqltree.TypeInt8}, Name: "id"},
	}, nil)
	rendered := sqltree.String(q)
	assert.Contains(t, rendered, "WHERE false")
	assert.Contains(t, rendered, "NULL::bigint")
}

func TestExplainDecomposition(t *testing.T) {
	e := newEnv(t)
	e.equiv.safeUnion = false

	q := nestedUnion(t)
	subPlans, err := Decompose(q, 1, e.rctx)
	require.NoError(t, err)

	explained := ExplainDecomposition(1, q, subPlans)
	assert.Contains(t, explained, "Distributed Plan 1")
	assert.Contains(t, explained, "Subplan 1_1")
	assert.Contains(t, explained, "Subplan 1_2")
	assert.Contains(t, explained, "Main Query")
	assert.True(t, strings.Count(explained, "read_intermediate_result") >= 2)
}
