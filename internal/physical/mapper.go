// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package physical maps logical items onto the backing filesystem. Every
// owner gets a sandboxed root under the data root; a resolved path that
// escapes it is rejected with a security fault before any I/O happens.
//
// The mapper operates on a billy.Filesystem: osfs in production, memfs in
// tests. No partial write is visible through the mapper; uploads go to an
// exclusively-created file and are removed again on a failed copy.
package physical

import (
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	butil "github.com/go-git/go-billy/v5/util"
	log "github.com/sirupsen/logrus"

	"cabinet/internal/common"
	"cabinet/internal/fault"
)

// Mapper performs low-level file and directory operations for the engine.
type Mapper struct {
	fs billy.Filesystem
	// extAllowed reports whether a file extension (lowercase, no dot) is
	// acceptable for renames. Nil allows everything; the engine wires the
	// request-validation allow-list here.
	extAllowed func(string) bool
}

// NewMapper returns a mapper over the given filesystem, which must be
// rooted at the data root.
func NewMapper(fs billy.Filesystem) *Mapper {
	return &Mapper{fs: fs}
}

// NewOSMapper returns a mapper over the host filesystem rooted at dataRoot.
func NewOSMapper(dataRoot string) *Mapper {
	return NewMapper(osfs.New(dataRoot))
}

// WithExtensionPolicy sets the rename extension allow-list.
func (m *Mapper) WithExtensionPolicy(allowed func(string) bool) *Mapper {
	m.extAllowed = allowed
	return m
}

// resolve maps (owner, relative path) to a path inside the owner's
// sandboxed root. Traversal escapes are refused.
func (m *Mapper) resolve(owner common.Owner, rel string) (string, error) {
	if !owner.Valid() {
		return "", fault.New(fault.KindSecurity, "unowned storage access")
	}
	if common.EscapesRoot(rel) {
		return "", fault.New(fault.KindSecurity, "path %q escapes the storage root", rel)
	}
	rel = common.NormalizePath(rel)
	resolved := path.Join(owner.StorageDir(), rel)
	// Join cleans the result; a second check catches anything the clean
	// step folded into an escape.
	if common.EscapesRoot(resolved) {
		return "", fault.New(fault.KindSecurity, "path %q escapes the storage root", rel)
	}
	return resolved, nil
}

// FullPath returns the absolute path backing (owner, rel), for download
// handlers that stream straight off disk.
func (m *Mapper) FullPath(owner common.Owner, rel string) (string, error) {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.fs.Root(), filepath.FromSlash(p)), nil
}

// Exists reports whether a physical resource backs (owner, rel).
func (m *Mapper) Exists(owner common.Owner, rel string) (bool, error) {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return false, err
	}
	_, err = m.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if isNotExist(err) {
		return false, nil
	}
	return false, fault.Wrap(fault.KindIO, err, "stat %s", rel)
}

// CreateDir creates the directory at rel. An existing entry is a conflict,
// not an overwrite.
func (m *Mapper) CreateDir(owner common.Owner, rel string) error {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return err
	}
	if _, err := m.fs.Stat(p); err == nil {
		return fault.New(fault.KindConflict, "directory %q already exists", rel)
	}
	if err := m.fs.MkdirAll(p, 0o755); err != nil {
		return fault.Wrap(fault.KindIO, err, "create directory %s", rel)
	}
	return nil
}

// SaveFile streams r into a new file at rel, collision-checked. Returns
// the byte count written. A failed copy removes the partial file so no
// half-written content is left visible.
func (m *Mapper) SaveFile(owner common.Owner, rel string, r io.Reader) (int64, error) {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return 0, err
	}
	if err := m.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return 0, fault.Wrap(fault.KindIO, err, "create parent directory for %s", rel)
	}
	f, err := m.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) || errors.Is(err, os.ErrExist) {
			return 0, fault.New(fault.KindConflict, "file %q already exists", rel)
		}
		return 0, fault.Wrap(fault.KindIO, err, "create file %s", rel)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if rmErr := m.fs.Remove(p); rmErr != nil {
			log.WithError(rmErr).WithField("path", rel).Warn("failed to remove partial upload")
		}
		return 0, fault.Wrap(fault.KindIO, err, "write file %s", rel)
	}
	return n, nil
}

// ResolveRenameTarget applies the file rename naming rules without
// touching disk: a new name lacking an extension keeps the original one,
// and a disallowed extension is refused. Returns the final name and the
// file's would-be relative path.
func (m *Mapper) ResolveRenameTarget(rel, newName string) (string, string, error) {
	finalName := newName
	if common.Extension(finalName) == "" {
		if origExt := common.Extension(common.BaseName(rel)); origExt != "" {
			finalName += "." + origExt
		}
	}
	if ext := common.Extension(finalName); ext != "" && m.extAllowed != nil && !m.extAllowed(ext) {
		return "", "", fault.New(fault.KindInvalidOperation, "file extension %q is not supported", ext)
	}
	return finalName, common.JoinPath(common.ParentPath(rel), finalName), nil
}

// RenameFile renames the file at rel within its directory under the
// ResolveRenameTarget rules. Returns the final name and the file's new
// relative path.
func (m *Mapper) RenameFile(owner common.Owner, rel, newName string) (string, string, error) {
	finalName, newRel, err := m.ResolveRenameTarget(rel, newName)
	if err != nil {
		return "", "", err
	}
	if err := m.rename(owner, rel, newRel); err != nil {
		return "", "", err
	}
	return finalName, newRel, nil
}

// RenameDir renames the directory at rel within its parent and returns
// the new relative path.
func (m *Mapper) RenameDir(owner common.Owner, rel, newName string) (string, error) {
	newRel := common.JoinPath(common.ParentPath(rel), newName)
	if err := m.rename(owner, rel, newRel); err != nil {
		return "", err
	}
	return newRel, nil
}

// Move relocates a file or directory to newRel, collision-checked at the
// destination.
func (m *Mapper) Move(owner common.Owner, rel, newRel string) error {
	return m.rename(owner, rel, newRel)
}

func (m *Mapper) rename(owner common.Owner, rel, newRel string) error {
	src, err := m.resolve(owner, rel)
	if err != nil {
		return err
	}
	dst, err := m.resolve(owner, newRel)
	if err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	if _, err := m.fs.Stat(src); err != nil {
		if isNotExist(err) {
			return fault.New(fault.KindNotFound, "%q does not exist", rel)
		}
		return fault.Wrap(fault.KindIO, err, "stat %s", rel)
	}
	if _, err := m.fs.Stat(dst); err == nil {
		return fault.New(fault.KindConflict, "%q already exists", newRel)
	}
	if err := m.fs.Rename(src, dst); err != nil {
		return fault.Wrap(fault.KindIO, err, "move %s to %s", rel, newRel)
	}
	return nil
}

// Delete removes the file or directory at rel; directories are removed
// recursively. A missing resource is a not-found fault.
func (m *Mapper) Delete(owner common.Owner, rel string) error {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return err
	}
	fi, err := m.fs.Stat(p)
	if err != nil {
		if isNotExist(err) {
			return fault.New(fault.KindNotFound, "%q does not exist", rel)
		}
		return fault.Wrap(fault.KindIO, err, "stat %s", rel)
	}
	if fi.IsDir() {
		if err := butil.RemoveAll(m.fs, p); err != nil {
			return fault.Wrap(fault.KindIO, err, "remove directory %s", rel)
		}
		return nil
	}
	if err := m.fs.Remove(p); err != nil {
		return fault.Wrap(fault.KindIO, err, "remove file %s", rel)
	}
	return nil
}

// DeleteIfExists removes rel when present. A missing resource is fine;
// the purge and compensation paths treat it as already cleaned up.
func (m *Mapper) DeleteIfExists(owner common.Owner, rel string) error {
	err := m.Delete(owner, rel)
	if err != nil && fault.NotFound(err) {
		return nil
	}
	return err
}

// Open opens the file at rel for reading (downloads, archive streaming).
func (m *Mapper) Open(owner common.Owner, rel string) (billy.File, error) {
	p, err := m.resolve(owner, rel)
	if err != nil {
		return nil, err
	}
	f, err := m.fs.Open(p)
	if err != nil {
		if isNotExist(err) {
			return nil, fault.New(fault.KindNotFound, "%q does not exist", rel)
		}
		return nil, fault.Wrap(fault.KindIO, err, "open %s", rel)
	}
	return f, nil
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
}
