// Package storage resolves the on-disk layout of a database : the root
// directory, the per-database directory and the well-known file names inside
// it, plus an advisory lock so two servers cannot serve the same database.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/victor-base/victordb"
)

// File names inside a database directory.
const (
	IndexSnapshotName = "db.index"
	TableSnapshotName = "db.table"
	IndexWALName      = "db.iwal"
	TableWALName      = "db.twal"
	SocketName        = "socket.unix"
	lockName          = ".lock"
)

// DefaultRoot is the database root when neither the environment nor the
// configuration overrides it.
const DefaultRoot = "/var/lib/victord"

// RootEnv names the environment variable overriding the database root.
const RootEnv = "VICTOR_DB_ROOT"

// Root resolves the database root directory.
func Root() string {
	if root := os.Getenv(RootEnv); root != "" {
		return root
	}
	return DefaultRoot
}

// Layout locates every file of one named database.
type Layout struct {
	root string
	name string
}

// NewLayout builds the layout for a database under root. An empty root means
// the resolved default.
func NewLayout(root, name string) (Layout, error) {
	if name == "" || name != filepath.Base(name) || name[0] == '.' {
		return Layout{}, fmt.Errorf("database name %q: %w", name, victordb.ErrIllegalArgument)
	}
	if root == "" {
		root = Root()
	}
	return Layout{root: root, name: name}, nil
}

// Dir returns the database directory.
func (l Layout) Dir() string {
	return filepath.Join(l.root, l.name)
}

// EnsureDir creates the database directory with owner-only permissions if it
// does not exist.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir(), 0o700); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func (l Layout) IndexSnapshot() string {
	return filepath.Join(l.Dir(), IndexSnapshotName)
}

func (l Layout) TableSnapshot() string {
	return filepath.Join(l.Dir(), TableSnapshotName)
}

func (l Layout) IndexWAL() string {
	return filepath.Join(l.Dir(), IndexWALName)
}

func (l Layout) TableWAL() string {
	return filepath.Join(l.Dir(), TableWALName)
}

// Socket returns the default endpoint path inside the database directory.
func (l Layout) Socket() string {
	return filepath.Join(l.Dir(), SocketName)
}

func (l Layout) lockPath() string {
	return filepath.Join(l.Dir(), lockName)
}
