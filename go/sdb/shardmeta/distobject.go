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

package shardmeta

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"shardine.io/shardine/go/sdb/sdberrors"
	"shardine.io/shardine/go/sdb/sqltree"
)

// ObjectAddress identifies an arbitrary catalog object: the class of the
// object, the object id within that class, and a sub-object id (non-zero
// for columns and other object parts).
type ObjectAddress struct {
	ClassID  uint32
	ObjectID sqltree.ObjectID
	SubID    int32
}

// Registry records which catalog objects have been propagated to all worker
// nodes. Unpropagated objects make their dependents unplannable for
// distributed execution, so the planner consults the registry when deciding
// what can run where.
type Registry struct {
	db *sql.DB
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS dist_object (
	classid  INTEGER NOT NULL,
	objid    INTEGER NOT NULL,
	objsubid INTEGER NOT NULL,
	PRIMARY KEY (classid, objid, objsubid)
)`

// OpenRegistry opens (and if needed initializes) the registry at the given
// sqlite path. Use ":memory:" for an ephemeral registry.
func OpenRegistry(ctx context.Context, path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, sdberrors.Wrapf(err, "opening object registry at %s", path)
	}
	if _, err := db.ExecContext(ctx, registrySchema); err != nil {
		db.Close()
		return nil, sdberrors.Wrap(err, "initializing object registry schema")
	}
	return &Registry{db: db}, nil
}

// Close releases the registry's database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// MarkDistributed records the object as propagated. Marking an already
// marked object is a no-op.
func (r *Registry) MarkDistributed(ctx context.Context, addr ObjectAddress) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO dist_object (classid, objid, objsubid) VALUES (?, ?, ?)",
		addr.ClassID, uint64(addr.ObjectID), addr.SubID)
	if err != nil {
		return sdberrors.Wrapf(err, "marking object %d/%d/%d as distributed",
			addr.ClassID, addr.ObjectID, addr.SubID)
	}
	return nil
}

// UnmarkDistributed removes the object's registration. It returns an error
// when the object was not registered.
func (r *Registry) UnmarkDistributed(ctx context.Context, addr ObjectAddress) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM dist_object WHERE classid = ? AND objid = ? AND objsubid = ?",
		addr.ClassID, uint64(addr.ObjectID), addr.SubID)
	if err != nil {
		return sdberrors.Wrapf(err, "unmarking object %d/%d/%d",
			addr.ClassID, addr.ObjectID, addr.SubID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sdberrors.Wrap(err, "unmarking object")
	}
	if affected == 0 {
		return sdberrors.Errorf(sdberrors.InvalidArgument,
			"object %d/%d/%d is not marked as distributed",
			addr.ClassID, addr.ObjectID, addr.SubID)
	}
	return nil
}

// IsDistributed reports whether the object is registered as propagated.
func (r *Registry) IsDistributed(ctx context.Context, addr ObjectAddress) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM dist_object WHERE classid = ? AND objid = ? AND objsubid = ?",
		addr.ClassID, uint64(addr.ObjectID), addr.SubID).Scan(&one)
	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, sdberrors.Wrapf(err, "looking up object %d/%d/%d",
			addr.ClassID, addr.ObjectID, addr.SubID)
	}
}

// List returns all registered objects, ordered by address.
func (r *Registry) List(ctx context.Context) ([]ObjectAddress, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT classid, objid, objsubid FROM dist_object ORDER BY classid, objid, objsubid")
	if err != nil {
		return nil, sdberrors.Wrap(err, "listing distributed objects")
	}
	defer rows.Close()

	var out []ObjectAddress
	for rows.Next() {
		var addr ObjectAddress
		var objid uint64
		if err := rows.Scan(&addr.ClassID, &objid, &addr.SubID); err != nil {
			return nil, sdberrors.Wrap(err, "scanning distributed object row")
		}
		addr.ObjectID = sqltree.ObjectID(objid)
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, sdberrors.Wrap(err, "listing distributed objects")
	}
	return out, nil
}
