package catalog_test

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/jchantrell/slimdivers/internal/bundle"
	"github.com/jchantrell/slimdivers/internal/bundle/bundletest"
	"github.com/jchantrell/slimdivers/internal/catalog"
	"github.com/jchantrell/slimdivers/internal/catalog/catalogtest"
	"github.com/stretchr/testify/require"
)

func TestPackageFindFloorSearch(t *testing.T) {
	p := &catalog.Package{
		Name: "pkg",
		Size: 400,
		Entries: []catalog.Entry{
			{OriginalOffset: 0, StartOffset: 1000},
			{OriginalOffset: 100, StartOffset: 5000},
			{OriginalOffset: 250, StartOffset: 9000},
		},
	}

	e, ok := p.Find(260)
	require.True(t, ok)
	require.Equal(t, uint64(250), e.OriginalOffset)

	e, ok = p.Find(99)
	require.True(t, ok)
	require.Equal(t, uint64(0), e.OriginalOffset)

	e, ok = p.Find(100)
	require.True(t, ok)
	require.Equal(t, uint64(100), e.OriginalOffset)

	_, ok = p.Find(400)
	require.False(t, ok)

	require.Equal(t, uint64(100), p.Span(0))
	require.Equal(t, uint64(150), p.Span(1))
	require.Equal(t, uint64(150), p.Span(2))
}

func TestParseMasterIndex(t *testing.T) {
	data := catalogtest.MasterIndex(3,
		&catalog.Package{
			Name: "9ba626afa44a3aa3",
			Size: 300,
			Entries: []catalog.Entry{
				{OriginalOffset: 200, StartOffset: 64, BundleIndex: 2},
				{OriginalOffset: 0, StartOffset: 128, BundleIndex: 1},
			},
		},
		&catalog.Package{Name: "9ba626afa44a3aa3.stream", Size: 10, Entries: []catalog.Entry{{BundleIndex: 0}}},
	)

	bundles, packages, err := catalog.ParseMasterIndex(data)
	require.NoError(t, err)
	require.Equal(t, uint32(3), bundles)
	require.Len(t, packages, 2)

	p := packages["9ba626afa44a3aa3"]
	require.NotNil(t, p)
	require.Equal(t, uint64(300), p.Size)
	require.Equal(t, []catalog.Entry{
		{OriginalOffset: 0, StartOffset: 128, BundleIndex: 1},
		{OriginalOffset: 200, StartOffset: 64, BundleIndex: 2},
	}, p.Entries)
	require.Equal(t, "bundles.02.nxa", p.Entries[1].Bundle())

	require.Contains(t, packages, "9ba626afa44a3aa3.stream")
}

func TestParseMasterIndexCorrupt(t *testing.T) {
	_, _, err := catalog.ParseMasterIndex(make([]byte, 8))
	require.ErrorIs(t, err, catalog.ErrCorruptIndex)

	header := make([]byte, 0x18)
	binary.LittleEndian.PutUint32(header[0x10:], 5)
	_, _, err = catalog.ParseMasterIndex(header)
	require.ErrorIs(t, err, catalog.ErrCorruptIndex)

	data := catalogtest.MasterIndex(1, &catalog.Package{Name: "abc", Size: 1, Entries: []catalog.Entry{{}}})
	_, _, err = catalog.ParseMasterIndex(data[:len(data)-4])
	require.ErrorIs(t, err, catalog.ErrCorruptIndex)

	unterminated := catalogtest.MasterIndex(1, &catalog.Package{Name: "abc", Size: 1})
	_, _, err = catalog.ParseMasterIndex(unterminated[:len(unterminated)-1])
	require.ErrorIs(t, err, catalog.ErrCorruptIndex)
}

func TestIsContainerCandidate(t *testing.T) {
	cases := map[string]bool{
		"9ba626afa44a3aa3":                true,
		"9ba626afa44a3aa3.stream":         true,
		"9ba626afa44a3aa3.gpu_resources":  true,
		"bundles.00.nxa":                  true,
		"9ba626afa44a3aa3.patch_0":        false,
		"9ba626afa44a3aa3.patch_0.stream": false,
		"settings.ini":                    false,
	}
	for name, want := range cases {
		require.Equal(t, want, catalog.IsContainerCandidate(name), name)
	}
}

func TestBuild(t *testing.T) {
	root := t.TempDir()

	runA := bundletest.Pattern(150, 1)
	runB := bundletest.Pattern(90, 2)
	starts := catalogtest.WriteBundle(t, root, 0,
		catalogtest.Run{Data: runA, ChunkSize: 64},
		catalogtest.Run{Data: runB, ChunkSize: 64, Compress: true},
	)

	catalogtest.WriteMaster(t, root, 1, &catalog.Package{
		Name: "deadbeefdeadbeef",
		Size: 240,
		Entries: []catalog.Entry{
			{OriginalOffset: 0, StartOffset: starts[0]},
			{OriginalOffset: 150, StartOffset: starts[1]},
		},
	})

	// extensionless file that is not a container
	junk := make([]byte, 40)
	binary.LittleEndian.PutUint32(junk[8:], 0xFFFFFF)
	require.NoError(t, os.WriteFile(filepath.Join(root, "0123456789abcdef"), junk, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "0123456789abcdef.patch_0"), junk, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("hi"), 0o644))

	handles := bundle.NewHandles()
	defer handles.Close()
	fetcher, err := bundle.NewFetcher(handles, 0)
	require.NoError(t, err)

	cat, report, err := catalog.Build(context.Background(), root, fetcher, catalog.Options{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, 2, report.Succeeded())
	require.Equal(t, 1, report.Failed())
	require.ErrorIs(t, report.Failures()[0].Err, bundle.ErrTruncatedHeader)

	require.Equal(t, uint32(1), cat.BundleCount())
	require.Equal(t, []string{"deadbeefdeadbeef"}, cat.PackageNames())
	require.Equal(t, []string{"bundles.00.nxa", "bundles.nxa"}, cat.Files())

	idx, ok := cat.Offsets("bundles.00.nxa")
	require.True(t, ok)
	require.Contains(t, idx, starts[1])

	p, ok := cat.Package("deadbeefdeadbeef")
	require.True(t, ok)
	require.Len(t, p.Entries, 2)

	_, ok = cat.Package("missing")
	require.False(t, ok)
}

func TestBuildWithoutMasterIndex(t *testing.T) {
	handles := bundle.NewHandles()
	defer handles.Close()
	fetcher, err := bundle.NewFetcher(handles, 0)
	require.NoError(t, err)

	_, _, err = catalog.Build(context.Background(), t.TempDir(), fetcher, catalog.Options{})
	require.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var c *catalog.Catalog
	_, ok := c.Package("x")
	require.False(t, ok)
	_, ok = c.Offsets("x")
	require.False(t, ok)
	require.Nil(t, c.PackageNames())
}
