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

import (
	"fmt"
	"strings"
)

// TrackedBuffer is the buffer Format methods write into.
type TrackedBuffer struct {
	strings.Builder
}

// NewTrackedBuffer creates a new TrackedBuffer.
func NewTrackedBuffer() *TrackedBuffer {
	return &TrackedBuffer{}
}

func (buf *TrackedBuffer) printf(format string, args ...any) {
	fmt.Fprintf(buf, format, args...)
}

// node writes a node, or a placeholder for nil.
func (buf *TrackedBuffer) node(n SQLNode) {
	if n == nil {
		buf.WriteString("<nil>")
		return
	}
	n.Format(buf)
}

// String returns the SQL-shaped rendering of the node.
func String(node SQLNode) string {
	if node == nil {
		return "<nil>"
	}
	buf := NewTrackedBuffer()
	node.Format(buf)
	return buf.String()
}

// Format renders the query. Set operation queries render their operand
// subqueries by resolving the leaf references against the range table.
func (q *QueryTree) Format(buf *TrackedBuffer) {
	if len(q.CTEs) > 0 {
		buf.WriteString("WITH ")
		if q.HasRecursiveCTE {
			buf.WriteString("RECURSIVE ")
		}
		for i, cte := range q.CTEs {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.node(cte)
		}
		buf.WriteString(" ")
	}
	if q.SetOps != nil {
		q.formatSetOpNode(buf, q.SetOps)
		return
	}
	switch q.Command {
	case SelectCommand:
		q.formatSelect(buf)
	case InsertCommand, UpdateCommand, DeleteCommand:
		buf.printf("%v ", q.Command)
		q.formatSelect(buf)
	}
}

func (q *QueryTree) formatSelect(buf *TrackedBuffer) {
	buf.WriteString("SELECT ")
	if len(q.TargetList) == 0 {
		buf.WriteString("*")
	}
	first := true
	for _, tle := range q.TargetList {
		if tle.Junk {
			continue
		}
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.node(tle)
	}
	if q.JoinTree != nil && len(q.JoinTree.List) > 0 {
		buf.WriteString(" FROM ")
		for i, node := range q.JoinTree.List {
			if i > 0 {
				buf.WriteString(", ")
			}
			q.formatJoinTreeNode(buf, node)
		}
	}
	if q.JoinTree != nil && q.JoinTree.Quals != nil {
		buf.WriteString(" WHERE ")
		buf.node(q.JoinTree.Quals)
	}
	if q.Having != nil {
		buf.WriteString(" HAVING ")
		buf.node(q.Having)
	}
	if q.HasLimit {
		buf.WriteString(" LIMIT ...")
	}
}

func (q *QueryTree) formatJoinTreeNode(buf *TrackedBuffer, node JoinTreeNode) {
	switch node := node.(type) {
	case *RangeTableRef:
		q.formatEntry(buf, node.Index)
	case *JoinExpr:
		q.formatJoinTreeNode(buf, node.Left)
		buf.printf(" %v ", node.Type)
		q.formatJoinTreeNode(buf, node.Right)
		buf.WriteString(" ON ")
		if node.Cond == nil {
			buf.WriteString("true")
		} else {
			buf.node(node.Cond)
		}
	case *FromExpr:
		buf.WriteString("(")
		for i, sub := range node.List {
			if i > 0 {
				buf.WriteString(", ")
			}
			q.formatJoinTreeNode(buf, sub)
		}
		buf.WriteString(")")
	default:
		buf.node(node)
	}
}

func (q *QueryTree) formatSetOpNode(buf *TrackedBuffer, node SetOpNode) {
	switch node := node.(type) {
	case *RangeTableRef:
		q.formatEntry(buf, node.Index)
	case *SetOpExpr:
		q.formatSetOpNode(buf, node.Left)
		buf.printf(" %v ", node.Op)
		if node.All {
			buf.WriteString("ALL ")
		}
		q.formatSetOpNode(buf, node.Right)
	default:
		buf.node(node)
	}
}

func (q *QueryTree) formatEntry(buf *TrackedBuffer, index int) {
	if index < 1 || index > len(q.RangeTable) {
		buf.printf("rt[%d]", index)
		return
	}
	rte := q.RangeTable[index-1]
	switch ref := rte.Ref.(type) {
	case *RelationRef:
		buf.WriteString(ref.Name)
		if rte.Alias != "" && rte.Alias != ref.Name {
			buf.printf(" AS %s", rte.Alias)
		}
	case *SubqueryRef:
		buf.WriteString("(")
		buf.node(ref.Query)
		buf.WriteString(")")
		buf.printf(" AS %s", entryAlias(rte, index))
	case *CTERef:
		buf.WriteString(ref.Name)
		if rte.Alias != "" && rte.Alias != ref.Name {
			buf.printf(" AS %s", rte.Alias)
		}
	case *FunctionRef:
		if rte.Lateral {
			buf.WriteString("LATERAL ")
		}
		buf.node(ref.Func)
		if ref.Ordinality {
			buf.WriteString(" WITH ORDINALITY")
		}
		buf.printf(" AS %s", entryAlias(rte, index))
		formatColumnDefs(buf, ref.Columns)
	case *ValuesRef:
		buf.WriteString("(VALUES ")
		for i, row := range ref.Rows {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString("(")
			for j, expr := range row {
				if j > 0 {
					buf.WriteString(", ")
				}
				buf.node(expr)
			}
			buf.WriteString(")")
		}
		buf.printf(") AS %s", entryAlias(rte, index))
	default:
		buf.node(rte)
	}
}

func entryAlias(rte *RangeTableEntry, index int) string {
	if rte.Alias != "" {
		return rte.Alias
	}
	return fmt.Sprintf("unnamed_%d", index)
}

func formatColumnDefs(buf *TrackedBuffer, defs []ColumnDef) {
	if len(defs) == 0 {
		return
	}
	buf.WriteString("(")
	for i, def := range defs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.printf("%s %v", def.Name, def.Type)
	}
	buf.WriteString(")")
}

// Format renders the entry outside of a query context.
func (rte *RangeTableEntry) Format(buf *TrackedBuffer) {
	buf.node(rte.Ref)
	if rte.Alias != "" {
		buf.printf(" AS %s", rte.Alias)
	}
}

func (ref *RelationRef) Format(buf *TrackedBuffer) {
	buf.WriteString(ref.Name)
}

func (ref *SubqueryRef) Format(buf *TrackedBuffer) {
	buf.WriteString("(")
	buf.node(ref.Query)
	buf.WriteString(")")
}

func (ref *CTERef) Format(buf *TrackedBuffer) {
	buf.WriteString(ref.Name)
}

func (ref *FunctionRef) Format(buf *TrackedBuffer) {
	buf.node(ref.Func)
	if ref.Ordinality {
		buf.WriteString(" WITH ORDINALITY")
	}
}

func (ref *ValuesRef) Format(buf *TrackedBuffer) {
	buf.printf("VALUES[%d rows]", len(ref.Rows))
}

func (ref *JoinRef) Format(buf *TrackedBuffer) {
	buf.printf("join[%v]", ref.JoinType)
}

func (f *FromExpr) Format(buf *TrackedBuffer) {
	for i, node := range f.List {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.node(node)
	}
	if f.Quals != nil {
		buf.WriteString(" WHERE ")
		buf.node(f.Quals)
	}
}

func (j *JoinExpr) Format(buf *TrackedBuffer) {
	buf.node(j.Left)
	buf.printf(" %v ", j.Type)
	buf.node(j.Right)
	if j.Cond != nil {
		buf.WriteString(" ON ")
		buf.node(j.Cond)
	}
}

func (r *RangeTableRef) Format(buf *TrackedBuffer) {
	buf.printf("rt[%d]", r.Index)
}

func (s *SetOpExpr) Format(buf *TrackedBuffer) {
	buf.node(s.Left)
	buf.printf(" %v ", s.Op)
	if s.All {
		buf.WriteString("ALL ")
	}
	buf.node(s.Right)
}

func (cte *CommonTableExpr) Format(buf *TrackedBuffer) {
	buf.WriteString(cte.Name)
	if len(cte.ColumnAliases) > 0 {
		buf.printf("(%s)", strings.Join(cte.ColumnAliases, ", "))
	}
	buf.WriteString(" AS (")
	buf.node(cte.Query)
	buf.WriteString(")")
}

func (tle *TargetEntry) Format(buf *TrackedBuffer) {
	buf.node(tle.Expr)
	if tle.Name != "" {
		colName := ""
		if c, ok := tle.Expr.(*ColumnRef); ok {
			colName = c.Name
		}
		if tle.Name != colName {
			buf.printf(" AS %s", tle.Name)
		}
	}
}

func (c *ColumnRef) Format(buf *TrackedBuffer) {
	if c.Name != "" {
		buf.WriteString(c.Name)
		return
	}
	buf.printf("col[%d.%d]", c.RTIndex, c.Column)
}

func (c *Const) Format(buf *TrackedBuffer) {
	if c.Null {
		buf.printf("NULL::%v", c.Type)
		return
	}
	switch c.Type {
	case TypeText, TypeBytea, TypeTimestamptz, TypeDate, TypeJSON, TypeJSONB, TypeUUID, TypeUnknown:
		buf.printf("'%s'", strings.ReplaceAll(c.Val, "'", "''"))
	default:
		buf.WriteString(c.Val)
	}
}

func (f *FuncExpr) Format(buf *TrackedBuffer) {
	buf.printf("%s(", f.Name)
	for i, arg := range f.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.node(arg)
	}
	buf.WriteString(")")
}

func (b *BoolExpr) Format(buf *TrackedBuffer) {
	if b.Op == NotOp {
		buf.WriteString("NOT ")
		if len(b.Args) > 0 {
			buf.node(b.Args[0])
		}
		return
	}
	op := " AND "
	if b.Op == OrOp {
		op = " OR "
	}
	buf.WriteString("(")
	for i, arg := range b.Args {
		if i > 0 {
			buf.WriteString(op)
		}
		buf.node(arg)
	}
	buf.WriteString(")")
}

func (c *Comparison) Format(buf *TrackedBuffer) {
	buf.node(c.Left)
	buf.printf(" %s ", c.Op)
	buf.node(c.Right)
}

func (a *Aggref) Format(buf *TrackedBuffer) {
	buf.printf("%s(", a.Name)
	if len(a.Args) == 0 {
		buf.WriteString("*")
	}
	for i, arg := range a.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.node(arg)
	}
	buf.WriteString(")")
}

func (g *GroupingFunc) Format(buf *TrackedBuffer) {
	buf.WriteString("GROUPING(")
	for i, arg := range g.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.node(arg)
	}
	buf.WriteString(")")
}

func (p *PlaceholderVar) Format(buf *TrackedBuffer) {
	buf.node(p.Expr)
}

func (s *Sublink) Format(buf *TrackedBuffer) {
	switch s.LinkType {
	case ExistsSublink:
		buf.WriteString("EXISTS (")
		buf.node(s.Query)
		buf.WriteString(")")
	case AnySublink:
		buf.node(s.Test)
		buf.WriteString(" IN (")
		buf.node(s.Query)
		buf.WriteString(")")
	default:
		buf.WriteString("(")
		buf.node(s.Query)
		buf.WriteString(")")
	}
}
