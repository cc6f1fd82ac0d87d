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

	"github.com/xlab/treeprint"

	"shardine.io/shardine/go/sdb/planner"
	"shardine.io/shardine/go/sdb/sqltree"
)

// ExplainDecomposition renders the outcome of a decomposition pass: each
// subplan with its fragment, followed by the rewritten main query. Subplans
// are listed in execution order.
func ExplainDecomposition(planID uint64, q *sqltree.QueryTree, subPlans []*planner.DistributedSubPlan) string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("Distributed Plan %d", planID))
	for _, subPlan := range subPlans {
		branch := tree.AddBranch(fmt.Sprintf("Subplan %s", ResultID(planID, subPlan.SubPlanID)))
		branch.AddNode(sqltree.String(subPlan.Query))
	}
	main := tree.AddBranch("Main Query")
	main.AddNode(sqltree.String(q))
	return tree.String()
}
