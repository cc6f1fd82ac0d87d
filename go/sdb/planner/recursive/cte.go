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

// planCTEs materializes every CTE of the query as a subplan and rewrites
// all references to it into reads of the subplan's result. The CTE list is
// emptied afterwards: nothing below this level sees a CTE anymore.
func (ctx *planningContext) planCTEs(q *sqltree.QueryTree) error {
	if len(q.CTEs) == 0 {
		return nil
	}
	if q.HasRecursiveCTE {
		return sdberrors.Unsupportedf("recursive CTEs in distributed queries")
	}

	for _, cte := range q.CTEs {
		if cte.RefCount == 0 && !cte.Modifying {
			// Never referenced and side-effect free: it will never run.
			continue
		}
		if ContainsReferencesToOuterQuery(cte.Query) {
			return sdberrors.Unsupportedf("CTEs that refer to other subqueries are not supported in multi-shard queries")
		}

		resultQuery, err := ctx.createSubPlan(cte.Query, cte.ColumnAliases)
		if err != nil {
			return err
		}

		replaced := replaceCTEReferences(q, cte.Name, 0, &cteSubstitution{resultQuery: resultQuery})
		if replaced != cte.RefCount {
			return sdberrors.Bugf("replaced %d references to CTE %q, expected %d",
				replaced, cte.Name, cte.RefCount)
		}
	}

	q.CTEs = nil
	return nil
}

// cteSubstitution hands out the result query for the first reference and
// clones for every further one, so no two range table entries share a
// tree.
type cteSubstitution struct {
	resultQuery *sqltree.QueryTree
	used        bool
}

func (s *cteSubstitution) next() *sqltree.QueryTree {
	if !s.used {
		s.used = true
		return s.resultQuery
	}
	return sqltree.CloneQueryTree(s.resultQuery)
}

// replaceCTEReferences rewrites every range table entry that resolves to
// the named CTE at the given definition depth into a subquery entry
// reading the subplan result. It returns the number of rewritten entries.
//
// depth is the number of query levels between the CTE's defining query and
// the query currently being scanned: a reference matches when its LevelsUp
// equals depth, which also makes shadowing definitions in nested queries
// resolve correctly.
func replaceCTEReferences(q *sqltree.QueryTree, name string, depth int, subst *cteSubstitution) int {
	replaced := 0
	for _, rte := range q.RangeTable {
		switch ref := rte.Ref.(type) {
		case *sqltree.CTERef:
			if ref.Name == name && ref.LevelsUp == depth {
				if rte.Alias == "" {
					rte.Alias = name
				}
				rte.Ref = &sqltree.SubqueryRef{Query: subst.next()}
				replaced++
			}
		case *sqltree.SubqueryRef:
			replaced += replaceCTEReferences(ref.Query, name, depth+1, subst)
		}
	}
	replaced += replaceCTEReferencesInExprs(q, name, depth, subst)
	return replaced
}

// replaceCTEReferencesInExprs descends into sublink subqueries, which sit
// one query level below the scanned query just like FROM subqueries.
func replaceCTEReferencesInExprs(q *sqltree.QueryTree, name string, depth int, subst *cteSubstitution) int {
	replaced := 0
	_ = sqltree.WalkQueryChildren(func(node sqltree.SQLNode) (bool, error) {
		switch node := node.(type) {
		case *sqltree.SubqueryRef, *sqltree.CTERef:
			// FROM entries were handled above.
			return false, nil
		case *sqltree.QueryTree:
			replaced += replaceCTEReferences(node, name, depth+1, subst)
			return false, nil
		default:
			return true, nil
		}
	}, q)
	return replaced
}
