package mount

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0-chirag-s/sitecrafter/api"
)

func TestMaterialize_WritesTree(t *testing.T) {
	tr := buildTree(t, "src/components/App.tsx", "index.html")
	fs := memfs.New()

	require.NoError(t, Materialize(context.Background(), fs, ProjectTree(tr), Options{}))

	data, err := util.ReadFile(fs, "src/components/App.tsx")
	require.NoError(t, err)
	assert.Equal(t, "content of src/components/App.tsx", string(data))

	data, err = util.ReadFile(fs, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "content of index.html", string(data))

	info, err := fs.Stat("src/components")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMaterialize_EmptyDirectory(t *testing.T) {
	desc := api.NewDescriptor()
	desc.Set("public", api.DirEntry(nil))
	fs := memfs.New()

	require.NoError(t, Materialize(context.Background(), fs, desc, Options{}))
	info, err := fs.Stat("public")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMaterialize_OverwritesExisting(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "index.html", []byte("a much longer old body"), 0o644))

	desc := api.NewDescriptor()
	desc.Set("index.html", api.FileEntry("new"))
	require.NoError(t, Materialize(context.Background(), fs, desc, Options{}))

	data, err := util.ReadFile(fs, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestMaterialize_RejectsUnsafeNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		t.Run(name, func(t *testing.T) {
			desc := api.NewDescriptor()
			desc.Set(name, api.FileEntry("x"))
			err := Materialize(context.Background(), memfs.New(), desc, Options{})
			assert.ErrorIs(t, err, ErrUnsafeName)
		})
	}
}

func TestMaterialize_SkipsUnsafeEntryAndContinues(t *testing.T) {
	blank := api.NewDescriptor()
	blank.Set("b.txt", api.FileEntry("b"))
	desc := api.NewDescriptor()
	desc.Set("a.txt", api.FileEntry("a"))
	desc.Set("", api.DirEntry(blank))
	desc.Set("c.txt", api.FileEntry("c"))
	fs := memfs.New()

	err := Materialize(context.Background(), fs, desc, Options{})
	require.ErrorIs(t, err, ErrUnsafeName)

	for _, p := range []string{"a.txt", "c.txt"} {
		_, statErr := fs.Stat(p)
		assert.NoError(t, statErr, p)
	}
	_, statErr := fs.Stat("b.txt")
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestMaterialize_FormatGo(t *testing.T) {
	desc := api.NewDescriptor()
	desc.Set("main.go", api.FileEntry("package main\n\nfunc A()  {\nreturn\n}\n"))
	desc.Set("app.js", api.FileEntry("function  a(){}\n"))
	fs := memfs.New()

	require.NoError(t, Materialize(context.Background(), fs, desc, Options{FormatGo: true}))

	data, err := util.ReadFile(fs, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc A() {\n\treturn\n}\n", string(data))

	data, err = util.ReadFile(fs, "app.js")
	require.NoError(t, err)
	assert.Equal(t, "function  a(){}\n", string(data))
}

func TestMaterialize_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	desc := api.NewDescriptor()
	desc.Set("a.txt", api.FileEntry("x"))

	err := Materialize(ctx, memfs.New(), desc, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSSandbox_Mount(t *testing.T) {
	fs := memfs.New()
	var sb Sandbox = NewFSSandbox(fs, Options{})

	require.NoError(t, sb.Mount(context.Background(), ProjectTree(buildTree(t, "a/b.txt"))))
	data, err := util.ReadFile(fs, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "content of a/b.txt", string(data))
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Mount(context.Background(), api.NewDescriptor()))
}

func TestTee(t *testing.T) {
	var got []string
	ok := SandboxFunc(func(context.Context, *api.Descriptor) error {
		got = append(got, "ok")
		return nil
	})
	bad := SandboxFunc(func(context.Context, *api.Descriptor) error {
		got = append(got, "bad")
		return errors.New("bad sandbox")
	})

	err := Tee(bad, ok).Mount(context.Background(), api.NewDescriptor())
	assert.ErrorContains(t, err, "bad sandbox")
	assert.Equal(t, []string{"bad", "ok"}, got)

	assert.NoError(t, Tee().Mount(context.Background(), api.NewDescriptor()))
}
