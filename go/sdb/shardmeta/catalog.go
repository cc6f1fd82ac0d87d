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

// Package shardmeta exposes cluster metadata to the planner: which
// relations are distributed, reference or local, and which objects have
// been propagated to worker nodes.
package shardmeta

import "shardine.io/shardine/go/sdb/sqltree"

// TableKind classifies how a relation is managed by the cluster.
type TableKind int8

const (
	// KindLocal is a plain table known only to the coordinator.
	KindLocal TableKind = iota
	// KindDistributed is a sharded table.
	KindDistributed
	// KindReference is a table replicated to every node.
	KindReference
	// KindShardLocal is a coordinator-managed table whose shard placement
	// lives on a single node.
	KindShardLocal
	// KindMaterializedView is a coordinator-local materialized view.
	KindMaterializedView
)

func (k TableKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindDistributed:
		return "distributed"
	case KindReference:
		return "reference"
	case KindShardLocal:
		return "shard-local"
	case KindMaterializedView:
		return "materialized view"
	default:
		return "unknown"
	}
}

// Catalog resolves relation metadata for the planner.
type Catalog interface {
	// TableKind returns the classification of the relation, and false when
	// the relation is not known to the catalog.
	TableKind(id sqltree.ObjectID) (TableKind, bool)
	// Columns returns the relation's column definitions in attribute order.
	Columns(id sqltree.ObjectID) []sqltree.ColumnDef
}

// IsDistributedTable reports whether the relation is sharded.
func IsDistributedTable(catalog Catalog, id sqltree.ObjectID) bool {
	kind, ok := catalog.TableKind(id)
	return ok && kind == KindDistributed
}

// IsClusterTable reports whether the relation is managed by the cluster in
// any form, sharded or not.
func IsClusterTable(catalog Catalog, id sqltree.ObjectID) bool {
	kind, ok := catalog.TableKind(id)
	if !ok {
		return false
	}
	switch kind {
	case KindDistributed, KindReference, KindShardLocal:
		return true
	default:
		return false
	}
}

// IsLocalOrMatView reports whether the relation lives only on the
// coordinator.
func IsLocalOrMatView(catalog Catalog, id sqltree.ObjectID) bool {
	kind, ok := catalog.TableKind(id)
	if !ok {
		return false
	}
	return kind == KindLocal || kind == KindMaterializedView
}

// MapCatalog is an in-memory Catalog, used by tests and by tools that load
// metadata snapshots.
type MapCatalog struct {
	Kinds map[sqltree.ObjectID]TableKind
	Defs  map[sqltree.ObjectID][]sqltree.ColumnDef
}

// NewMapCatalog creates an empty MapCatalog.
func NewMapCatalog() *MapCatalog {
	return &MapCatalog{
		Kinds: make(map[sqltree.ObjectID]TableKind),
		Defs:  make(map[sqltree.ObjectID][]sqltree.ColumnDef),
	}
}

// AddTable registers a relation.
func (c *MapCatalog) AddTable(id sqltree.ObjectID, kind TableKind, defs ...sqltree.ColumnDef) {
	c.Kinds[id] = kind
	c.Defs[id] = defs
}

// TableKind implements Catalog.
func (c *MapCatalog) TableKind(id sqltree.ObjectID) (TableKind, bool) {
	kind, ok := c.Kinds[id]
	return kind, ok
}

// Columns implements Catalog.
func (c *MapCatalog) Columns(id sqltree.ObjectID) []sqltree.ColumnDef {
	return c.Defs[id]
}
