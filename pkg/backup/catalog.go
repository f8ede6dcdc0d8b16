// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// CatalogUnavailableError is returned when a backup directory cannot be read.
type CatalogUnavailableError struct {
	Dir   string
	Cause error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("backup catalog %s is unavailable: %v", e.Dir, e.Cause)
}

func (e *CatalogUnavailableError) Unwrap() error {
	return e.Cause
}

// Catalog reads backup artifacts from a directory tree laid out as
// <root>/<database>/<identity>.<suffix>. The filesystem is either the local
// disk or a remote share opened over SFTP.
type Catalog struct {
	fs       afero.Fs
	suffixes Suffixes
	log      logrus.FieldLogger
}

func NewCatalog(fs afero.Fs, suffixes Suffixes, log logrus.FieldLogger) *Catalog {
	return &Catalog{fs: fs, suffixes: suffixes, log: log}
}

func (c *Catalog) Suffixes() Suffixes {
	return c.suffixes
}

// DatabaseDir is the directory holding the artifacts of one database.
func (c *Catalog) DatabaseDir(root, database string) string {
	return filepath.Join(root, database)
}

// List returns every artifact of the database in no particular order.
// Entries without a known suffix and anything but regular files, such as
// sub-directories and symlinks, are ignored.
func (c *Catalog) List(root, database string) ([]Artifact, error) {
	dir := c.DatabaseDir(root, database)
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, &CatalogUnavailableError{Dir: dir, Cause: err}
	}

	var (
		artifacts []Artifact
		total     uint64
	)
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			c.log.Debugf("Skipping %s: not a regular file", entry.Name())
			continue
		}
		tier, identity, ok := c.suffixes.Classify(entry.Name())
		if !ok {
			c.log.Debugf("Skipping %s: not a backup artifact", entry.Name())
			continue
		}
		artifacts = append(artifacts, Artifact{
			Database: database,
			Name:     entry.Name(),
			Path:     filepath.Join(dir, entry.Name()),
			Identity: identity,
			Tier:     tier,
			Size:     entry.Size(),
		})
		total += uint64(entry.Size())
	}

	c.log.WithField("dir", dir).Infof("Found %d backup artifacts (%s)", len(artifacts), humanize.Bytes(total))
	return artifacts, nil
}

// Databases returns the names of the per-database directories under root.
func (c *Catalog) Databases(root string) ([]string, error) {
	entries, err := afero.ReadDir(c.fs, root)
	if err != nil {
		return nil, &CatalogUnavailableError{Dir: root, Cause: err}
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// EnsureRoot creates the backup root if it does not exist yet.
func (c *Catalog) EnsureRoot(root string) error {
	if err := c.fs.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create backup root %s: %w", root, err)
	}
	return nil
}

// Remove deletes an artifact. Removing an artifact that is already gone is not an error.
func (c *Catalog) Remove(a Artifact) error {
	if err := c.fs.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", a.Path, err)
	}
	return nil
}
