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

import "fmt"

// CloneQueryTree creates a deep clone of the query. The clone shares no
// mutable state with the input: the planner overwrites query trees in place
// and hands out clones wherever two consumers must not observe each other's
// rewrites.
func CloneQueryTree(in *QueryTree) *QueryTree {
	if in == nil {
		return nil
	}
	out := &QueryTree{
		Command:         in.Command,
		JoinTree:        CloneFromExpr(in.JoinTree),
		TargetList:      CloneTargetEntries(in.TargetList),
		Having:          CloneExpr(in.Having),
		SetOps:          CloneSetOpNode(in.SetOps),
		Returning:       CloneTargetEntries(in.Returning),
		HasRecursiveCTE: in.HasRecursiveCTE,
		HasLimit:        in.HasLimit,
	}
	if in.RangeTable != nil {
		out.RangeTable = make([]*RangeTableEntry, len(in.RangeTable))
		for i, rte := range in.RangeTable {
			out.RangeTable[i] = CloneRangeTableEntry(rte)
		}
	}
	if in.CTEs != nil {
		out.CTEs = make([]*CommonTableExpr, len(in.CTEs))
		for i, cte := range in.CTEs {
			out.CTEs[i] = CloneCommonTableExpr(cte)
		}
	}
	return out
}

// CloneRangeTableEntry creates a deep clone of the entry.
func CloneRangeTableEntry(in *RangeTableEntry) *RangeTableEntry {
	if in == nil {
		return nil
	}
	return &RangeTableEntry{
		Alias:         in.Alias,
		ColumnAliases: cloneStrings(in.ColumnAliases),
		Lateral:       in.Lateral,
		Ref:           CloneTableRef(in.Ref),
	}
}

// CloneTableRef creates a deep clone of the table reference variant.
func CloneTableRef(in TableRef) TableRef {
	switch in := in.(type) {
	case nil:
		return nil
	case *RelationRef:
		out := *in
		return &out
	case *SubqueryRef:
		return &SubqueryRef{Query: CloneQueryTree(in.Query)}
	case *CTERef:
		out := *in
		return &out
	case *FunctionRef:
		return &FunctionRef{
			Func:       cloneFuncExpr(in.Func),
			Ordinality: in.Ordinality,
			Columns:    CloneColumnDefs(in.Columns),
		}
	case *ValuesRef:
		out := &ValuesRef{Columns: CloneColumnDefs(in.Columns)}
		if in.Rows != nil {
			out.Rows = make([][]Expr, len(in.Rows))
			for i, row := range in.Rows {
				out.Rows[i] = cloneExprs(row)
			}
		}
		return out
	case *JoinRef:
		out := *in
		return &out
	default:
		panic(fmt.Sprintf("unexpected table reference %T", in))
	}
}

// CloneFromExpr creates a deep clone of the join tree root.
func CloneFromExpr(in *FromExpr) *FromExpr {
	if in == nil {
		return nil
	}
	out := &FromExpr{Quals: CloneExpr(in.Quals)}
	if in.List != nil {
		out.List = make([]JoinTreeNode, len(in.List))
		for i, node := range in.List {
			out.List[i] = CloneJoinTreeNode(node)
		}
	}
	return out
}

// CloneJoinTreeNode creates a deep clone of the join tree node.
func CloneJoinTreeNode(in JoinTreeNode) JoinTreeNode {
	switch in := in.(type) {
	case nil:
		return nil
	case *FromExpr:
		return CloneFromExpr(in)
	case *JoinExpr:
		return &JoinExpr{
			Type:  in.Type,
			Left:  CloneJoinTreeNode(in.Left),
			Right: CloneJoinTreeNode(in.Right),
			Cond:  CloneExpr(in.Cond),
		}
	case *RangeTableRef:
		out := *in
		return &out
	default:
		panic(fmt.Sprintf("unexpected join tree node %T", in))
	}
}

// CloneSetOpNode creates a deep clone of the set operation node.
func CloneSetOpNode(in SetOpNode) SetOpNode {
	switch in := in.(type) {
	case nil:
		return nil
	case *SetOpExpr:
		return &SetOpExpr{
			Op:    in.Op,
			All:   in.All,
			Left:  CloneSetOpNode(in.Left),
			Right: CloneSetOpNode(in.Right),
		}
	case *RangeTableRef:
		out := *in
		return &out
	default:
		panic(fmt.Sprintf("unexpected set operation node %T", in))
	}
}

// CloneCommonTableExpr creates a deep clone of the CTE definition.
func CloneCommonTableExpr(in *CommonTableExpr) *CommonTableExpr {
	if in == nil {
		return nil
	}
	return &CommonTableExpr{
		Name:          in.Name,
		ColumnAliases: cloneStrings(in.ColumnAliases),
		Query:         CloneQueryTree(in.Query),
		RefCount:      in.RefCount,
		Modifying:     in.Modifying,
	}
}

// CloneTargetEntries creates a deep clone of the target list.
func CloneTargetEntries(in []*TargetEntry) []*TargetEntry {
	if in == nil {
		return nil
	}
	out := make([]*TargetEntry, len(in))
	for i, tle := range in {
		out[i] = &TargetEntry{
			Expr: CloneExpr(tle.Expr),
			Name: tle.Name,
			Junk: tle.Junk,
		}
	}
	return out
}

// CloneColumnDefs copies a column definition list.
func CloneColumnDefs(in []ColumnDef) []ColumnDef {
	if in == nil {
		return nil
	}
	out := make([]ColumnDef, len(in))
	copy(out, in)
	return out
}

// CloneExpr creates a deep clone of the expression.
func CloneExpr(in Expr) Expr {
	switch in := in.(type) {
	case nil:
		return nil
	case *ColumnRef:
		out := *in
		return &out
	case *Const:
		out := *in
		return &out
	case *FuncExpr:
		return cloneFuncExpr(in)
	case *BoolExpr:
		return &BoolExpr{Op: in.Op, Args: cloneExprs(in.Args)}
	case *Comparison:
		return &Comparison{
			Op:    in.Op,
			Left:  CloneExpr(in.Left),
			Right: CloneExpr(in.Right),
		}
	case *Aggref:
		return &Aggref{
			Name:     in.Name,
			Args:     cloneExprs(in.Args),
			LevelsUp: in.LevelsUp,
			Type:     in.Type,
		}
	case *GroupingFunc:
		return &GroupingFunc{Args: cloneExprs(in.Args), LevelsUp: in.LevelsUp}
	case *PlaceholderVar:
		return &PlaceholderVar{Expr: CloneExpr(in.Expr), LevelsUp: in.LevelsUp}
	case *Sublink:
		return &Sublink{
			LinkType: in.LinkType,
			Test:     CloneExpr(in.Test),
			Query:    CloneQueryTree(in.Query),
		}
	default:
		panic(fmt.Sprintf("unexpected expression %T", in))
	}
}

func cloneFuncExpr(in *FuncExpr) *FuncExpr {
	if in == nil {
		return nil
	}
	return &FuncExpr{
		Name:       in.Name,
		Args:       cloneExprs(in.Args),
		ReturnsSet: in.ReturnsSet,
		Type:       in.Type,
	}
}

func cloneExprs(in []Expr) []Expr {
	if in == nil {
		return nil
	}
	out := make([]Expr, len(in))
	for i, expr := range in {
		out[i] = CloneExpr(expr)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
