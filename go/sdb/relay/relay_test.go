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

package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/sqltree"
)

func TestAppendShardID(t *testing.T) {
	assert.Equal(t, "orders_102008", AppendShardID("orders", 102008))
	assert.Equal(t, "orders_pkey_12", AppendShardID("orders_pkey", 12))
}

func TestAppendShardIDClipsLongNames(t *testing.T) {
	long := strings.Repeat("a", 70)
	extended := AppendShardID(long, 102008)

	assert.LessOrEqual(t, len(extended), 63)
	assert.True(t, strings.HasSuffix(extended, "_102008"))
	assert.True(t, strings.HasPrefix(extended, "aaaa"))

	// Distinct long names with a common prefix stay distinct.
	other := AppendShardID(strings.Repeat("a", 69)+"b", 102008)
	assert.NotEqual(t, extended, other)

	// Deterministic.
	assert.Equal(t, extended, AppendShardID(long, 102008))
}

func TestAppendShardIDClipsOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 40)
	extended := AppendShardID(long, 1)
	assert.LessOrEqual(t, len(extended), 63)
	assert.True(t, utf8ValidString(extended))
}

func utf8ValidString(s string) bool {
	for _, r := range s {
		if r == '�' {
			return false
		}
	}
	return true
}

func TestExtendNamesCreateTable(t *testing.T) {
	stmt := &sqltree.CreateTable{Name: &sqltree.ObjectName{Name: "orders"}}
	require.NoError(t, ExtendNames(stmt, "shard_schema", 102008))
	assert.Equal(t, "orders_102008", stmt.Name.Name)
	assert.Equal(t, "shard_schema", stmt.Name.Schema)
}

func TestExtendNamesCreateIndex(t *testing.T) {
	stmt := &sqltree.CreateIndex{
		Name:  &sqltree.ObjectName{Name: "orders_pkey"},
		Table: &sqltree.ObjectName{Name: "orders"},
	}
	require.NoError(t, ExtendNames(stmt, "public", 13))
	assert.Equal(t, "orders_pkey_13", stmt.Name.Name)
	assert.Equal(t, "orders_13", stmt.Table.Name)
}

func TestExtendNamesConcurrentIndexRejected(t *testing.T) {
	stmt := &sqltree.CreateIndex{
		Name:         &sqltree.ObjectName{Name: "orders_pkey"},
		Table:        &sqltree.ObjectName{Name: "orders"},
		Concurrently: true,
	}
	err := ExtendNames(stmt, "public", 13)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Internal, sdberrors.Code(err))
	assert.Contains(t, err.Error(), "concurrent index")
}

func TestExtendNamesMultipleDropRejected(t *testing.T) {
	stmt := &sqltree.DropTable{Tables: []*sqltree.ObjectName{
		{Name: "orders"}, {Name: "order_lines"},
	}}
	err := ExtendNames(stmt, "public", 13)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Internal, sdberrors.Code(err))
	assert.Contains(t, err.Error(), "multiple drop objects")

	single := &sqltree.DropTable{Tables: []*sqltree.ObjectName{{Name: "orders"}}}
	require.NoError(t, ExtendNames(single, "public", 13))
	assert.Equal(t, "orders_13", single.Tables[0].Name)
}

func TestExtendNamesRenameTable(t *testing.T) {
	stmt := &sqltree.RenameTable{
		Table:   &sqltree.ObjectName{Name: "orders"},
		NewName: "purchases",
	}
	require.NoError(t, ExtendNames(stmt, "public", 7))
	assert.Equal(t, "orders_7", stmt.Table.Name)
	assert.Equal(t, "purchases_7", stmt.NewName)
}

func TestExtendNamesRenameColumn(t *testing.T) {
	stmt := &sqltree.RenameTable{
		Table:   &sqltree.ObjectName{Name: "orders"},
		Column:  "total",
		NewName: "amount",
	}
	require.NoError(t, ExtendNames(stmt, "public", 7))
	assert.Equal(t, "orders_7", stmt.Table.Name)
	// Column names are the same on every shard.
	assert.Equal(t, "amount", stmt.NewName)
}

func TestExtendNamesReindex(t *testing.T) {
	stmt := &sqltree.Reindex{Name: &sqltree.ObjectName{Name: "orders_pkey"}}
	require.NoError(t, ExtendNames(stmt, "public", 13))
	assert.Equal(t, "orders_pkey_13", stmt.Name.Name)
}

func TestExtendNamesCluster(t *testing.T) {
	stmt := &sqltree.Cluster{
		Table: &sqltree.ObjectName{Name: "orders"},
		Index: "orders_pkey",
	}
	require.NoError(t, ExtendNames(stmt, "public", 13))
	assert.Equal(t, "orders_13", stmt.Table.Name)
	assert.Equal(t, "orders_pkey_13", stmt.Index)

	bare := &sqltree.Cluster{}
	err := ExtendNames(bare, "public", 13)
	require.Error(t, err)
	assert.Equal(t, sdberrors.Unimplemented, sdberrors.Code(err))
}

func TestExtendNamesGrant(t *testing.T) {
	stmt := &sqltree.Grant{
		Privileges: []string{"SELECT"},
		Tables:     []*sqltree.ObjectName{{Name: "orders"}, {Name: "order_lines"}},
		Grantees:   []string{"reporting"},
	}
	require.NoError(t, ExtendNames(stmt, "public", 7))
	assert.Equal(t, "orders_7", stmt.Tables[0].Name)
	assert.Equal(t, "order_lines_7", stmt.Tables[1].Name)
}

func TestExtendNamesTruncate(t *testing.T) {
	stmt := &sqltree.TruncateTable{Tables: []*sqltree.ObjectName{
		{Name: "orders"}, {Name: "order_lines"},
	}}
	require.NoError(t, ExtendNames(stmt, "public", 7))
	assert.Equal(t, "orders_7", stmt.Tables[0].Name)
	assert.Equal(t, "order_lines_7", stmt.Tables[1].Name)
}
