package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/podmap/pkg/db/memory"
	"github.com/eigerco/podmap/pkg/log"
	"github.com/eigerco/podmap/pkg/podmap"
)

func openBooks(t *testing.T) *podmap.Map[uint64, Book] {
	t.Helper()
	dir := t.TempDir()
	t.Cleanup(func() {
		require.NoError(t, memory.Destroy(dir))
	})
	books := podmap.New[uint64, Book](podmap.Uint64Key{}, podmap.WithEngine(memory.Open))
	require.NoError(t, books.Open(dir, true, 0))
	t.Cleanup(func() {
		require.NoError(t, books.Close())
	})
	return books
}

func TestDemo(t *testing.T) {
	books := openBooks(t)

	var out bytes.Buffer
	require.NoError(t, runDemo(books, &out, false))
	assert.Equal(t, "4\n40\n", out.String())

	out.Reset()
	require.NoError(t, runDemo(books, &out, true))
	assert.Equal(t, "4\n4\n40\n", out.String())

	n, err := books.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunExitCode(t *testing.T) {
	root, storage, cli := log.Root, log.Storage, log.CLI
	t.Cleanup(func() {
		log.Root, log.Storage, log.CLI = root, storage, cli
	})

	tests := []struct {
		name string
		args func(dir string) []string
		code int
		out  string
	}{
		{
			name: "demo",
			args: func(dir string) []string { return []string{"-dir", dir, "demo"} },
			code: 0,
			out:  "4\n40\n",
		},
		{
			name: "unknown_mode",
			args: func(dir string) []string { return []string{"-dir", dir, "replay"} },
			code: 1,
		},
		{
			name: "open_failure",
			args: func(dir string) []string { return []string{"-dir", dir, "-create=false", "demo"} },
			code: 1,
		},
		{
			name: "bad_engine",
			args: func(dir string) []string { return []string{"-dir", dir, "-engine", "leveldb", "demo"} },
			code: 2,
		},
		{
			name: "bad_log_level",
			args: func(dir string) []string { return []string{"-dir", dir, "-log-level", "loud", "demo"} },
			code: 2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tc.code, run(tc.args(t.TempDir()), &out))
			assert.Equal(t, tc.out, out.String())
		})
	}
}

func TestOpenerFor(t *testing.T) {
	for _, name := range []string{"pebble", "memory"} {
		open, err := openerFor(name)
		require.NoError(t, err)
		assert.NotNil(t, open)
	}
	_, err := openerFor("leveldb")
	assert.Error(t, err)
}

func TestShell(t *testing.T) {
	books := openBooks(t)
	var out bytes.Buffer
	sh := &shell{books: books, out: &out}

	tests := []struct {
		line    string
		want    string
		wantErr bool
	}{
		{line: "", want: ""},
		{line: "PUT 2 40 12", want: "OK\n"},
		{line: "put 1 3 11", want: "OK\n"},
		{line: "PUT 3 300", wantErr: true},
		{line: "PUT x 1 1", wantErr: true},
		{line: "GET 1", want: "1: pages=3 date=11\n"},
		{line: "GET 9", want: "not found\n"},
		{line: "SCAN", want: "1: pages=3 date=11\n2: pages=40 date=12\n"},
		{line: "SCAN 2", want: "2: pages=40 date=12\n"},
		{line: "SCAN 0 1", want: "1: pages=3 date=11\n"},
		{line: "SCAN 0 -1", wantErr: true},
		{line: "RSCAN", want: "2: pages=40 date=12\n1: pages=3 date=11\n"},
		{line: "LAST", want: "2: pages=40 date=12\n"},
		{line: "COUNT", want: "2\n"},
		{line: "DELETE 2", want: "OK\n"},
		{line: "DELETE 2", wantErr: true},
		{line: "COUNT", want: "1\n"},
		{line: "FROB", wantErr: true},
		{line: ".frob", wantErr: true},
	}
	for _, tc := range tests {
		out.Reset()
		err := sh.execute(tc.line)
		if tc.wantErr {
			assert.Error(t, err, tc.line)
			continue
		}
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, out.String(), tc.line)
	}

	assert.ErrorIs(t, sh.execute(".exit"), errQuit)
}

func TestShellExportImport(t *testing.T) {
	src := openBooks(t)
	var out bytes.Buffer
	file := filepath.Join(t.TempDir(), "books.zst")

	srcShell := &shell{books: src, out: &out}
	require.NoError(t, srcShell.execute("PUT 1 3 11"))
	require.NoError(t, srcShell.execute("PUT 2 40 12"))
	require.NoError(t, srcShell.execute(".export "+file))

	dst := openBooks(t)
	out.Reset()
	dstShell := &shell{books: dst, out: &out}
	require.NoError(t, dstShell.execute(".import "+file))
	assert.Equal(t, "imported 2 books\n", out.String())

	out.Reset()
	require.NoError(t, dstShell.execute("SCAN"))
	assert.Equal(t, "1: pages=3 date=11\n2: pages=40 date=12\n", out.String())

	assert.Error(t, dstShell.execute(".import "+filepath.Join(t.TempDir(), "missing")))
}
