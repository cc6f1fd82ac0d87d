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

// Statement is a parsed DDL statement, as rewritten by the relay package
// before being shipped to worker nodes.
type Statement interface {
	SQLNode
	statement()
}

// ObjectName is a possibly schema-qualified object name.
type ObjectName struct {
	Schema string
	Name   string
}

func (n *ObjectName) Format(buf *TrackedBuffer) {
	if n.Schema != "" {
		buf.printf("%s.", n.Schema)
	}
	buf.WriteString(n.Name)
}

func (*ObjectName) walkSubtree(Visit) error { return nil }

// CreateTable is a CREATE TABLE statement.
type CreateTable struct {
	Name    *ObjectName
	Columns []ColumnDef
}

// DropTable is a DROP TABLE statement.
type DropTable struct {
	Tables   []*ObjectName
	IfExists bool
}

// CreateIndex is a CREATE INDEX statement.
type CreateIndex struct {
	Name         *ObjectName
	Table        *ObjectName
	Columns      []string
	Unique       bool
	Concurrently bool
}

// DropIndex is a DROP INDEX statement.
type DropIndex struct {
	Indexes      []*ObjectName
	IfExists     bool
	Concurrently bool
}

// AlterTable is an ALTER TABLE statement. The subcommands are kept as
// rendered text; name extension only touches the table name.
type AlterTable struct {
	Table *ObjectName
	Cmds  []string
}

// TruncateTable is a TRUNCATE statement.
type TruncateTable struct {
	Tables []*ObjectName
}

// RenameTable is an ALTER TABLE ... RENAME statement. When Column is set
// the statement renames a column and NewName is the new column name;
// otherwise NewName is the new table name.
type RenameTable struct {
	Table   *ObjectName
	Column  string
	NewName string
}

// Reindex is a REINDEX statement over a single table or index.
type Reindex struct {
	Table bool
	Name  *ObjectName
}

// Cluster is a CLUSTER statement. A nil Table means the multi-relation
// form, which cannot be targeted at a single shard.
type Cluster struct {
	Table *ObjectName
	Index string
}

// Grant is a GRANT or REVOKE statement on a list of tables.
type Grant struct {
	Revoke     bool
	Privileges []string
	Tables     []*ObjectName
	Grantees   []string
}

func (*CreateTable) statement()   {}
func (*DropTable) statement()     {}
func (*CreateIndex) statement()   {}
func (*DropIndex) statement()     {}
func (*AlterTable) statement()    {}
func (*TruncateTable) statement() {}
func (*RenameTable) statement()   {}
func (*Reindex) statement()       {}
func (*Cluster) statement()       {}
func (*Grant) statement()         {}

func (s *CreateTable) Format(buf *TrackedBuffer) {
	buf.WriteString("CREATE TABLE ")
	buf.node(s.Name)
	buf.WriteString(" ")
	formatColumnDefs(buf, s.Columns)
}

func (s *DropTable) Format(buf *TrackedBuffer) {
	buf.WriteString("DROP TABLE ")
	if s.IfExists {
		buf.WriteString("IF EXISTS ")
	}
	formatObjectNames(buf, s.Tables)
}

func (s *CreateIndex) Format(buf *TrackedBuffer) {
	buf.WriteString("CREATE ")
	if s.Unique {
		buf.WriteString("UNIQUE ")
	}
	buf.WriteString("INDEX ")
	if s.Concurrently {
		buf.WriteString("CONCURRENTLY ")
	}
	buf.node(s.Name)
	buf.WriteString(" ON ")
	buf.node(s.Table)
	buf.WriteString(" (")
	for i, col := range s.Columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(col)
	}
	buf.WriteString(")")
}

func (s *DropIndex) Format(buf *TrackedBuffer) {
	buf.WriteString("DROP INDEX ")
	if s.Concurrently {
		buf.WriteString("CONCURRENTLY ")
	}
	if s.IfExists {
		buf.WriteString("IF EXISTS ")
	}
	formatObjectNames(buf, s.Indexes)
}

func (s *AlterTable) Format(buf *TrackedBuffer) {
	buf.WriteString("ALTER TABLE ")
	buf.node(s.Table)
	for i, cmd := range s.Cmds {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.printf(" %s", cmd)
	}
}

func (s *TruncateTable) Format(buf *TrackedBuffer) {
	buf.WriteString("TRUNCATE ")
	formatObjectNames(buf, s.Tables)
}

func (s *RenameTable) Format(buf *TrackedBuffer) {
	buf.WriteString("ALTER TABLE ")
	buf.node(s.Table)
	if s.Column != "" {
		buf.printf(" RENAME COLUMN %s TO %s", s.Column, s.NewName)
		return
	}
	buf.printf(" RENAME TO %s", s.NewName)
}

func (s *Reindex) Format(buf *TrackedBuffer) {
	if s.Table {
		buf.WriteString("REINDEX TABLE ")
	} else {
		buf.WriteString("REINDEX INDEX ")
	}
	buf.node(s.Name)
}

func (s *Cluster) Format(buf *TrackedBuffer) {
	buf.WriteString("CLUSTER")
	if s.Table == nil {
		return
	}
	buf.WriteString(" ")
	buf.node(s.Table)
	if s.Index != "" {
		buf.printf(" USING %s", s.Index)
	}
}

func (s *Grant) Format(buf *TrackedBuffer) {
	if s.Revoke {
		buf.WriteString("REVOKE ")
	} else {
		buf.WriteString("GRANT ")
	}
	for i, priv := range s.Privileges {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(priv)
	}
	buf.WriteString(" ON ")
	formatObjectNames(buf, s.Tables)
	if s.Revoke {
		buf.WriteString(" FROM ")
	} else {
		buf.WriteString(" TO ")
	}
	for i, grantee := range s.Grantees {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(grantee)
	}
}

func formatObjectNames(buf *TrackedBuffer, names []*ObjectName) {
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.node(name)
	}
}

func (s *CreateTable) walkSubtree(visit Visit) error { return Walk(visit, s.Name) }

func (s *DropTable) walkSubtree(visit Visit) error {
	return walkObjectNames(visit, s.Tables)
}

func (s *CreateIndex) walkSubtree(visit Visit) error {
	return Walk(visit, s.Name, s.Table)
}

func (s *DropIndex) walkSubtree(visit Visit) error {
	return walkObjectNames(visit, s.Indexes)
}

func (s *AlterTable) walkSubtree(visit Visit) error { return Walk(visit, s.Table) }

func (s *TruncateTable) walkSubtree(visit Visit) error {
	return walkObjectNames(visit, s.Tables)
}

func (s *RenameTable) walkSubtree(visit Visit) error { return Walk(visit, s.Table) }

func (s *Reindex) walkSubtree(visit Visit) error { return Walk(visit, s.Name) }

func (s *Cluster) walkSubtree(visit Visit) error {
	if s.Table == nil {
		return nil
	}
	return Walk(visit, s.Table)
}

func (s *Grant) walkSubtree(visit Visit) error {
	return walkObjectNames(visit, s.Tables)
}

func walkObjectNames(visit Visit, names []*ObjectName) error {
	for _, name := range names {
		if err := Walk(visit, name); err != nil {
			return err
		}
	}
	return nil
}
