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

// Package sqltree defines the analyzed query tree that the distributed
// planner operates on.
//
// A QueryTree owns a range table: an ordered arena of RangeTableEntry
// values addressed by 1-based position. Everything else in the tree (join
// tree leaves, set operation leaves, column references) refers to range
// table entries by position, never by pointer. Rewriting an entry's Ref in
// place therefore never invalidates references held elsewhere, which is the
// property the recursive planner relies on when it swaps subqueries for
// intermediate result reads.
package sqltree

import "fmt"

// ObjectID identifies a catalog object (relation, function) by its stable
// catalog identifier.
type ObjectID uint64

// SQLNode defines the interface for all nodes of the query tree.
type SQLNode interface {
	// Format reconstructs an SQL-shaped rendering of the node. It is used
	// for debug logging and tests, not for shard execution.
	Format(buf *TrackedBuffer)
	// walkSubtree visits all the sub-nodes of the current node.
	walkSubtree(visit Visit) error
}

// CommandType is the statement type of a QueryTree.
type CommandType int8

const (
	SelectCommand CommandType = iota
	InsertCommand
	UpdateCommand
	DeleteCommand
)

func (c CommandType) String() string {
	switch c {
	case SelectCommand:
		return "SELECT"
	case InsertCommand:
		return "INSERT"
	case UpdateCommand:
		return "UPDATE"
	case DeleteCommand:
		return "DELETE"
	default:
		return fmt.Sprintf("COMMAND(%d)", c)
	}
}

// QueryTree is the root of one query definition. Subqueries hang off range
// table entries and sublinks, each owning their own QueryTree.
//
// A QueryTree is exclusively owned by the planning pass processing it and
// may be replaced wholesale: the planner overwrites all fields in place when
// a query is recursively planned, so that references to the tree held by
// index remain valid.
type QueryTree struct {
	Command    CommandType
	RangeTable []*RangeTableEntry
	JoinTree   *FromExpr
	TargetList []*TargetEntry
	Having     Expr
	CTEs       []*CommonTableExpr
	SetOps     SetOpNode
	Returning  []*TargetEntry

	// HasRecursiveCTE is set when the CTE list was declared WITH RECURSIVE.
	HasRecursiveCTE bool
	// HasLimit is set when the query carries a LIMIT or OFFSET clause.
	HasLimit bool
}

// EntryAt returns the range table entry at the given 1-based position.
// The position must be valid; an invalid position is a planner bug.
func (q *QueryTree) EntryAt(index int) *RangeTableEntry {
	if index < 1 || index > len(q.RangeTable) {
		panic(fmt.Sprintf("range table index %d out of range 1..%d", index, len(q.RangeTable)))
	}
	return q.RangeTable[index-1]
}

// AddEntry appends a range table entry and returns its 1-based position.
func (q *QueryTree) AddEntry(rte *RangeTableEntry) int {
	q.RangeTable = append(q.RangeTable, rte)
	return len(q.RangeTable)
}

// RangeTableEntry is one slot of a range table. The Ref field is a tagged
// variant: replacing it rewrites what the slot stands for without moving
// the slot.
type RangeTableEntry struct {
	// Alias is the name the entry is known by in the query, empty when the
	// relation's own name is used.
	Alias string
	// ColumnAliases renames the entry's output columns when non-empty.
	ColumnAliases []string
	// Lateral marks LATERAL subqueries and function calls.
	Lateral bool
	Ref     TableRef
}

// TableRef is the variant type of a range table entry.
type TableRef interface {
	SQLNode
	tableRef()
}

// RelationRef is a reference to a stored relation.
type RelationRef struct {
	Relation ObjectID
	Name     string
}

// SubqueryRef holds a subquery in FROM.
type SubqueryRef struct {
	Query *QueryTree
}

// CTERef is a not-yet-resolved reference to a common table expression
// defined LevelsUp query levels above the referencing query.
type CTERef struct {
	Name     string
	LevelsUp int
}

// FunctionRef is a table-returning function call in FROM.
type FunctionRef struct {
	Func *FuncExpr
	// Ordinality is set for WITH ORDINALITY calls.
	Ordinality bool
	// Columns is the explicit column definition list when present, or the
	// columns derived from the function's declared result type.
	Columns []ColumnDef
}

// ValuesRef is a VALUES list in FROM.
type ValuesRef struct {
	Rows    [][]Expr
	Columns []ColumnDef
}

// JoinRef is the expansion entry the analyzer creates for a join alias.
// It carries no relation of its own.
type JoinRef struct {
	JoinType JoinType
}

func (*RelationRef) tableRef() {}
func (*SubqueryRef) tableRef() {}
func (*CTERef) tableRef()      {}
func (*FunctionRef) tableRef() {}
func (*ValuesRef) tableRef()   {}
func (*JoinRef) tableRef()     {}

// JoinTreeNode is a node of the join tree: a FROM list, a join, or a range
// table reference leaf.
type JoinTreeNode interface {
	SQLNode
	joinTreeNode()
}

// FromExpr is the root of a join tree: the FROM list plus the WHERE clause.
type FromExpr struct {
	List  []JoinTreeNode
	Quals Expr
}

// JoinType is the kind of a JoinExpr.
type JoinType int8

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

func (j JoinType) String() string {
	switch j {
	case InnerJoin:
		return "JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL JOIN"
	default:
		return fmt.Sprintf("JOIN(%d)", j)
	}
}

// JoinExpr is an explicit join between two join tree nodes.
type JoinExpr struct {
	Type  JoinType
	Left  JoinTreeNode
	Right JoinTreeNode
	Cond  Expr
}

// RangeTableRef is a leaf of the join tree or of a set operation tree,
// pointing at a range table entry by 1-based position.
type RangeTableRef struct {
	Index int
}

func (*FromExpr) joinTreeNode()      {}
func (*JoinExpr) joinTreeNode()      {}
func (*RangeTableRef) joinTreeNode() {}

// SetOpNode is a node of a set operation tree. Leaves are RangeTableRef
// values pointing at subquery range table entries.
type SetOpNode interface {
	SQLNode
	setOpNode()
}

// SetOpType is the operator of a SetOpExpr.
type SetOpType int8

const (
	UnionOp SetOpType = iota
	IntersectOp
	ExceptOp
)

func (s SetOpType) String() string {
	switch s {
	case UnionOp:
		return "UNION"
	case IntersectOp:
		return "INTERSECT"
	case ExceptOp:
		return "EXCEPT"
	default:
		return fmt.Sprintf("SETOP(%d)", s)
	}
}

// SetOpExpr combines two set operation subtrees.
type SetOpExpr struct {
	Op    SetOpType
	All   bool
	Left  SetOpNode
	Right SetOpNode
}

func (*SetOpExpr) setOpNode()     {}
func (*RangeTableRef) setOpNode() {}

// CommonTableExpr is one WITH clause definition. RefCount is maintained by
// the analyzer and must equal the number of CTERef range table entries that
// name this CTE at any level of the owning query.
type CommonTableExpr struct {
	Name          string
	ColumnAliases []string
	Query         *QueryTree
	RefCount      int
	// Modifying is set for non-SELECT CTE bodies (INSERT/UPDATE/DELETE).
	Modifying bool
}

// TargetEntry is one output column of a query.
type TargetEntry struct {
	Expr Expr
	Name string
	// Junk marks entries that exist for sorting or row identity only and
	// are not part of the visible result.
	Junk bool
}

// ColumnDef declares an output column name and type, as used by explicit
// column definition lists of function scans and VALUES lists.
type ColumnDef struct {
	Name string
	Type Type
}

// Expr is an expression node.
type Expr interface {
	SQLNode
	// ExprType returns the result type of the expression.
	ExprType() Type
}

// ColumnRef points at an output column of a range table entry. LevelsUp is
// zero for references within the owning query and counts enclosing query
// boundaries otherwise.
type ColumnRef struct {
	RTIndex  int
	Column   int
	LevelsUp int
	Name     string
	Type     Type
}

// Const is a literal value.
type Const struct {
	Type Type
	Val  string
	Null bool
}

// FuncExpr is a function call.
type FuncExpr struct {
	Name       string
	Args       []Expr
	ReturnsSet bool
	Type       Type
}

// BoolOp is the operator of a BoolExpr.
type BoolOp int8

const (
	AndOp BoolOp = iota
	OrOp
	NotOp
)

// BoolExpr combines boolean expressions.
type BoolExpr struct {
	Op   BoolOp
	Args []Expr
}

// Comparison is a binary comparison.
type Comparison struct {
	Op    string
	Left  Expr
	Right Expr
}

// Aggref is an aggregate call. LevelsUp is non-zero for aggregates that
// belong to an enclosing query.
type Aggref struct {
	Name     string
	Args     []Expr
	LevelsUp int
	Type     Type
}

// GroupingFunc is a GROUPING(...) call. LevelsUp mirrors Aggref.
type GroupingFunc struct {
	Args     []Expr
	LevelsUp int
}

// PlaceholderVar stands in for an expression evaluated LevelsUp query
// boundaries above the point of use.
type PlaceholderVar struct {
	Expr     Expr
	LevelsUp int
}

// SublinkType is the kind of a Sublink.
type SublinkType int8

const (
	ExistsSublink SublinkType = iota
	AnySublink
	ExprSublink
)

// Sublink is a subquery used inside an expression.
type Sublink struct {
	LinkType SublinkType
	// Test is the left-hand expression of an ANY sublink, nil otherwise.
	Test  Expr
	Query *QueryTree
}

func (c *ColumnRef) ExprType() Type      { return c.Type }
func (c *Const) ExprType() Type          { return c.Type }
func (f *FuncExpr) ExprType() Type       { return f.Type }
func (*BoolExpr) ExprType() Type         { return TypeBool }
func (*Comparison) ExprType() Type       { return TypeBool }
func (a *Aggref) ExprType() Type         { return a.Type }
func (*GroupingFunc) ExprType() Type     { return TypeInt4 }
func (p *PlaceholderVar) ExprType() Type { return p.Expr.ExprType() }

func (s *Sublink) ExprType() Type {
	switch s.LinkType {
	case ExistsSublink, AnySublink:
		return TypeBool
	default:
		if len(s.Query.TargetList) > 0 {
			return s.Query.TargetList[0].Expr.ExprType()
		}
		return TypeUnknown
	}
}
