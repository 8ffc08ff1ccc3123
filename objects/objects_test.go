package objects_test

import (
	"path/filepath"
	"testing"

	"github.com/scribehq/scribe/digest"
	"github.com/scribehq/scribe/internal/errs"
	"github.com/scribehq/scribe/objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *objects.Store {
	t.Helper()
	s, err := objects.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	content := []byte("hello scribe")

	h, err := s.Put("blob", content)
	require.NoError(t, err)
	assert.Equal(t, digest.HashObject("blob", content), h)

	got, err := s.Get(h)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestPutSameBytesDifferentTypeGetsDifferentDigest(t *testing.T) {
	s := openTestStore(t)
	content := []byte("identical bytes")

	hBlob, err := s.Put("blob", content)
	require.NoError(t, err)
	hTree, err := s.Put("tree", content)
	require.NoError(t, err)
	assert.NotEqual(t, hBlob, hTree)

	gotBlob, err := s.Get(hBlob)
	require.NoError(t, err)
	assert.Equal(t, content, gotBlob)
	gotTree, err := s.Get(hTree)
	require.NoError(t, err)
	assert.Equal(t, content, gotTree)
}

func TestPutDuplicateIsNoOp(t *testing.T) {
	s := openTestStore(t)
	content := []byte("same content twice")

	h1, err := s.Put("blob", content)
	require.NoError(t, err)
	h2, err := s.Put("blob", content)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	got, err := s.Get(h1)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGetMissingReturnsObjMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(digest.HashObject("blob", []byte("never written")))
	require.Error(t, err)
	assert.Equal(t, errs.ObjMissing, errs.KindOf(err))
}

func TestHasAndSize(t *testing.T) {
	s := openTestStore(t)
	content := []byte("sized content")
	h, err := s.Put("blob", content)
	require.NoError(t, err)

	has, err := s.Has(h)
	require.NoError(t, err)
	assert.True(t, has)

	size, err := s.Size(h)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)

	hasNot, err := s.Has(digest.HashObject("blob", []byte("absent")))
	require.NoError(t, err)
	assert.False(t, hasNot)
}

func TestPathLayoutShardsByFirstByte(t *testing.T) {
	dir := t.TempDir()
	s, err := objects.Open(dir)
	require.NoError(t, err)

	content := []byte("shard me")
	h, err := s.Put("blob", content)
	require.NoError(t, err)

	hex := digest.ToHex(h)
	want := filepath.Join(dir, hex[0:2], hex[2:])
	got, err := s.Get(h)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.FileExists(t, want)
}

func TestNoLeftoverTempFilesAfterPut(t *testing.T) {
	dir := t.TempDir()
	s, err := objects.Open(dir)
	require.NoError(t, err)

	_, err = s.Put("blob", []byte("clean write"))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "*", "*.tmp.*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
