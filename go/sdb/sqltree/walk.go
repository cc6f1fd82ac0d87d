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

// Visit defines the signature of a function that
// can be used to visit all nodes of a query tree.
type Visit func(node SQLNode) (kontinue bool, err error)

// Walk calls visit on every node. If visit returns false, the underlying
// nodes are skipped. Crossing into a nested QueryTree is the visitor's
// choice: Walk descends into subqueries, CTE bodies and sublinks unless
// visit stops it at the QueryTree node.
func Walk(visit Visit, nodes ...SQLNode) error {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		kontinue, err := visit(node)
		if err != nil {
			return err
		}
		if kontinue {
			if err = node.walkSubtree(visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkQueryChildren calls visit on the immediate child nodes of the query
// without visiting the query node itself, descending through expression and
// join tree structure. Nested QueryTree nodes are visited but, as with Walk,
// descended into only when visit allows it.
func WalkQueryChildren(visit Visit, q *QueryTree) error {
	return q.walkSubtree(visit)
}

func walkExprs(visit Visit, exprs []Expr) error {
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		if err := Walk(visit, expr); err != nil {
			return err
		}
	}
	return nil
}

func (q *QueryTree) walkSubtree(visit Visit) error {
	for _, cte := range q.CTEs {
		if err := Walk(visit, cte); err != nil {
			return err
		}
	}
	for _, rte := range q.RangeTable {
		if err := Walk(visit, rte); err != nil {
			return err
		}
	}
	if q.JoinTree != nil {
		if err := Walk(visit, q.JoinTree); err != nil {
			return err
		}
	}
	for _, tle := range q.TargetList {
		if err := Walk(visit, tle); err != nil {
			return err
		}
	}
	if q.Having != nil {
		if err := Walk(visit, q.Having); err != nil {
			return err
		}
	}
	if q.SetOps != nil {
		if err := Walk(visit, q.SetOps); err != nil {
			return err
		}
	}
	for _, tle := range q.Returning {
		if err := Walk(visit, tle); err != nil {
			return err
		}
	}
	return nil
}

func (rte *RangeTableEntry) walkSubtree(visit Visit) error {
	if rte.Ref == nil {
		return nil
	}
	return Walk(visit, rte.Ref)
}

func (*RelationRef) walkSubtree(Visit) error { return nil }
func (*CTERef) walkSubtree(Visit) error      { return nil }
func (*JoinRef) walkSubtree(Visit) error     { return nil }

func (ref *SubqueryRef) walkSubtree(visit Visit) error {
	if ref.Query == nil {
		return nil
	}
	return Walk(visit, ref.Query)
}

func (ref *FunctionRef) walkSubtree(visit Visit) error {
	if ref.Func == nil {
		return nil
	}
	return Walk(visit, ref.Func)
}

func (ref *ValuesRef) walkSubtree(visit Visit) error {
	for _, row := range ref.Rows {
		if err := walkExprs(visit, row); err != nil {
			return err
		}
	}
	return nil
}

func (f *FromExpr) walkSubtree(visit Visit) error {
	for _, node := range f.List {
		if err := Walk(visit, node); err != nil {
			return err
		}
	}
	if f.Quals != nil {
		return Walk(visit, f.Quals)
	}
	return nil
}

func (j *JoinExpr) walkSubtree(visit Visit) error {
	if err := Walk(visit, j.Left, j.Right); err != nil {
		return err
	}
	if j.Cond != nil {
		return Walk(visit, j.Cond)
	}
	return nil
}

func (*RangeTableRef) walkSubtree(Visit) error { return nil }

func (s *SetOpExpr) walkSubtree(visit Visit) error {
	return Walk(visit, s.Left, s.Right)
}

func (cte *CommonTableExpr) walkSubtree(visit Visit) error {
	if cte.Query == nil {
		return nil
	}
	return Walk(visit, cte.Query)
}

func (tle *TargetEntry) walkSubtree(visit Visit) error {
	if tle.Expr == nil {
		return nil
	}
	return Walk(visit, tle.Expr)
}

func (*ColumnRef) walkSubtree(Visit) error { return nil }
func (*Const) walkSubtree(Visit) error     { return nil }

func (f *FuncExpr) walkSubtree(visit Visit) error {
	return walkExprs(visit, f.Args)
}

func (b *BoolExpr) walkSubtree(visit Visit) error {
	return walkExprs(visit, b.Args)
}

func (c *Comparison) walkSubtree(visit Visit) error {
	return Walk(visit, c.Left, c.Right)
}

func (a *Aggref) walkSubtree(visit Visit) error {
	return walkExprs(visit, a.Args)
}

func (g *GroupingFunc) walkSubtree(visit Visit) error {
	return walkExprs(visit, g.Args)
}

func (p *PlaceholderVar) walkSubtree(visit Visit) error {
	if p.Expr == nil {
		return nil
	}
	return Walk(visit, p.Expr)
}

func (s *Sublink) walkSubtree(visit Visit) error {
	if s.Test != nil {
		if err := Walk(visit, s.Test); err != nil {
			return err
		}
	}
	if s.Query == nil {
		return nil
	}
	return Walk(visit, s.Query)
}
