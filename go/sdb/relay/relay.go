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

// Package relay rewrites DDL statements for execution against individual
// shard placements: object names get the shard identifier appended and are
// requalified with the placement's schema.
package relay

import (
	"fmt"
	"hash/fnv"
	"unicode/utf8"

	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/sqltree"
)

// maxIdentifierLength is the longest identifier worker nodes accept.
const maxIdentifierLength = 63

const shardNameSeparator = '_'

// AppendShardID extends an object name with the shard identifier. When the
// extended name would exceed the identifier length limit, the name is
// clipped and an 8-digit hash of the original name is inserted so distinct
// long names stay distinct after clipping.
func AppendShardID(name string, shardID uint64) string {
	extended := fmt.Sprintf("%s%c%d", name, shardNameSeparator, shardID)
	if len(extended) <= maxIdentifierLength {
		return extended
	}

	hasher := fnv.New32a()
	hasher.Write([]byte(name))
	suffix := fmt.Sprintf("%c%08x%c%d", shardNameSeparator, hasher.Sum32(), shardNameSeparator, shardID)

	clipped := name
	for len(clipped) > maxIdentifierLength-len(suffix) {
		_, size := utf8.DecodeLastRuneInString(clipped)
		clipped = clipped[:len(clipped)-size]
	}
	return clipped + suffix
}

// ExtendNames rewrites the statement's object names for one shard
// placement, appending the shard identifier and setting the placement
// schema. The statement is modified in place.
func ExtendNames(stmt sqltree.Statement, schemaName string, shardID uint64) error {
	switch stmt := stmt.(type) {
	case *sqltree.CreateTable:
		extendName(stmt.Name, schemaName, shardID)
		return nil

	case *sqltree.DropTable:
		if len(stmt.Tables) > 1 {
			return sdberrors.Bugf("cannot extend name for multiple drop objects")
		}
		for _, name := range stmt.Tables {
			extendName(name, schemaName, shardID)
		}
		return nil

	case *sqltree.CreateIndex:
		if stmt.Concurrently {
			return sdberrors.Bugf("cannot extend name for concurrent index \"%s\"", stmt.Name.Name)
		}
		extendName(stmt.Name, schemaName, shardID)
		extendName(stmt.Table, schemaName, shardID)
		return nil

	case *sqltree.DropIndex:
		if len(stmt.Indexes) > 1 {
			return sdberrors.Bugf("cannot extend name for multiple drop objects")
		}
		for _, name := range stmt.Indexes {
			extendName(name, schemaName, shardID)
		}
		return nil

	case *sqltree.AlterTable:
		extendName(stmt.Table, schemaName, shardID)
		return nil

	case *sqltree.TruncateTable:
		for _, name := range stmt.Tables {
			extendName(name, schemaName, shardID)
		}
		return nil

	case *sqltree.RenameTable:
		extendName(stmt.Table, schemaName, shardID)
		if stmt.Column == "" {
			stmt.NewName = AppendShardID(stmt.NewName, shardID)
		}
		return nil

	case *sqltree.Reindex:
		extendName(stmt.Name, schemaName, shardID)
		return nil

	case *sqltree.Cluster:
		if stmt.Table == nil {
			return sdberrors.Unsupportedf("cannot extend name for multi-relation cluster")
		}
		extendName(stmt.Table, schemaName, shardID)
		if stmt.Index != "" {
			stmt.Index = AppendShardID(stmt.Index, shardID)
		}
		return nil

	case *sqltree.Grant:
		for _, name := range stmt.Tables {
			extendName(name, schemaName, shardID)
		}
		return nil

	default:
		return sdberrors.Unsupportedf("cannot extend names in %T statement", stmt)
	}
}

func extendName(name *sqltree.ObjectName, schemaName string, shardID uint64) {
	if name == nil {
		return
	}
	name.Name = AppendShardID(name.Name, shardID)
	if schemaName != "" {
		name.Schema = schemaName
	}
}
