// Package objects implements the filesystem-backed content-addressed blob
// store (C5, §4.5): a POSIX directory tree keyed by the digest of its
// content, with atomic write-then-rename semantics.
package objects

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
)

// Store is a directory rooted at <repo>/.scribe/objects.
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating root if it does not exist.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	return &Store{root: root}, nil
}

// pathFor returns <root>/<h[0:2]>/<h[2:64]> for hash.
func (s *Store) pathFor(hash digest.Digest) string {
	hex := digest.ToHex(hash)
	return filepath.Join(s.root, hex[0:2], hex[2:])
}

// Put writes content under the digest of its Git-style typed prefix (§3:
// SHA256("<type> <size>\0" ++ content)) and returns that digest. A
// duplicate write of a digest already present is a no-op success (§4.5).
// The write is atomic: content lands at a unique temp path first, then is
// renamed over the final path; the temp name embeds the pid and a uuid so
// two processes racing on the same not-yet-existing object never collide.
func (s *Store) Put(typ string, content []byte) (digest.Digest, error) {
	h := digest.HashObject(typ, content)
	final := s.pathFor(h)

	if _, err := os.Stat(final); err == nil {
		return h, nil
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return digest.Zero, errs.Wrap(errs.IO, err)
	}

	tmp := fmt.Sprintf("%s.tmp.%d-%s", final, os.Getpid(), uuid.New().String())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return digest.Zero, errs.Wrap(errs.IO, err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return digest.Zero, errs.Wrap(errs.IO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return digest.Zero, errs.Wrap(errs.IO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return digest.Zero, errs.Wrap(errs.IO, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return digest.Zero, errs.Wrap(errs.IO, err)
	}
	return h, nil
}

// Get returns the full content of hash, or errs.ObjMissing. The size is the
// length of the returned slice; Size reports it without reading the content.
func (s *Store) Get(hash digest.Digest) ([]byte, error) {
	f, err := os.Open(s.pathFor(hash))
	if os.IsNotExist(err) {
		return nil, errs.New(errs.ObjMissing, "object %s not found", digest.ToHex(hash))
	}
	if err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err)
	}
	return content, nil
}

// Has reports whether hash is present without reading its content.
func (s *Store) Has(hash digest.Digest) (bool, error) {
	_, err := os.Stat(s.pathFor(hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.IO, err)
	}
	return true, nil
}

// Size returns the byte size of the stored object, or errs.ObjMissing.
func (s *Store) Size(hash digest.Digest) (int64, error) {
	info, err := os.Stat(s.pathFor(hash))
	if os.IsNotExist(err) {
		return 0, errs.New(errs.ObjMissing, "object %s not found", digest.ToHex(hash))
	}
	if err != nil {
		return 0, errs.Wrap(errs.IO, err)
	}
	return info.Size(), nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}
