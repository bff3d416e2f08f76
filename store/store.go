// Package store is the durable persistence layer: three buntdb-backed
// tables (Bundles, Registrations, Globals), schema versioning, and payload
// directory verification on startup (§4.2).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/aistore/cmn/fname"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// Table names the three durable tables (§4.2).
type Table string

const (
	Bundles       Table = "bundles"
	Registrations Table = "registrations"
	Globals       Table = "globals"
)

// SchemaVersion is the current on-disk schema. A stored version that
// disagrees is fatal unless the caller asks for re-init (§4.2).
const SchemaVersion = "1"

// Config carries the on-disk layout the store opens against (§6 "Persistent
// state layout").
type Config struct {
	DBDir       string
	PayloadDir  string
	Init        bool // recreate all tables rather than failing on mismatch
	Checksum    bool // not read by Open; digests are checked only through VerifyChecksum
}

// Store wraps one buntdb database per table.
type Store struct {
	cfg  Config
	dbs  map[Table]*buntdb.DB
}

func dbPath(cfg Config, t Table) string {
	switch t {
	case Bundles:
		return filepath.Join(cfg.DBDir, fname.BundlesTable)
	case Registrations:
		return filepath.Join(cfg.DBDir, fname.RegistrationsTable)
	case Globals:
		return filepath.Join(cfg.DBDir, fname.GlobalsTable)
	}
	return filepath.Join(cfg.DBDir, string(t)+".db")
}

// Open opens (or, with cfg.Init, recreates) all three tables, checks the
// schema version stamped in Globals, and verifies the payload directory
// (§4.2).
func Open(cfg Config) (*Store, error) {
	s := &Store{cfg: cfg, dbs: make(map[Table]*buntdb.DB, 3)}
	for _, t := range []Table{Bundles, Registrations, Globals} {
		if cfg.Init {
			_ = os.Remove(dbPath(cfg, t))
		}
		db, err := buntdb.Open(dbPath(cfg, t))
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "store: open table %q", t)
		}
		s.dbs[t] = db
	}
	if err := s.checkSchema(cfg.Init); err != nil {
		s.Close()
		return nil, err
	}
	if err := verifyPayloadDir(cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) checkSchema(init bool) error {
	var stored string
	err := s.dbs[Globals].View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(fname.SchemaVersionKey)
		if err != nil && err != buntdb.ErrNotFound {
			return err
		}
		stored = v
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "store: read schema version")
	}
	if stored == SchemaVersion {
		return nil
	}
	if stored != "" && !init {
		return fmt.Errorf("store: schema version %q on disk does not match compiled version %q (pass init to recreate)", stored, SchemaVersion)
	}
	nlog.Warningf("store: stamping schema version %s (previous: %q)", SchemaVersion, stored)
	return s.dbs[Globals].Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(fname.SchemaVersionKey, SchemaVersion, nil)
		return err
	})
}

// Get reads one value from a table.
func (s *Store) Get(t Table, key string) (val string, ok bool, err error) {
	err = s.dbs[t].View(func(tx *buntdb.Tx) error {
		v, e := tx.Get(key)
		if e == buntdb.ErrNotFound {
			return nil
		}
		if e != nil {
			return e
		}
		val, ok = v, true
		return nil
	})
	return
}

// Put writes one value into a table.
func (s *Store) Put(t Table, key, val string) error {
	return s.dbs[t].Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, val, nil)
		return err
	})
}

// Del removes one key from a table. It is not an error to delete a missing
// key.
func (s *Store) Del(t Table, key string) error {
	return s.dbs[t].Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
}

// Iter calls fn for every (key, value) pair in a table, stopping early if
// fn returns false.
func (s *Store) Iter(t Table, fn func(key, val string) bool) error {
	return s.dbs[t].View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, val string) bool { return fn(key, val) })
	})
}

// Tx runs fn inside a single read-write transaction against one table,
// giving callers the begin/commit/abort semantics of §4.2 without exposing
// buntdb's transaction type directly.
func (s *Store) Tx(t Table, fn func(tx *buntdb.Tx) error) error {
	return s.dbs[t].Update(fn)
}

func (s *Store) Close() {
	for _, db := range s.dbs {
		if db != nil {
			_ = db.Close()
		}
	}
}
