package tree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(t *testing.T, tr *Tree) []string {
	t.Helper()
	var out []string
	require.NoError(t, tr.Walk(func(n *Node) error {
		out = append(out, n.Path)
		return nil
	}))
	return out
}

func TestUpsertFile_CreatesParentsLazily(t *testing.T) {
	tr := New()

	created, err := tr.UpsertFile("src/components/App.tsx", "export default App;")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 3, tr.Len())

	roots := tr.Snapshot()
	require.Len(t, roots, 1)
	src := roots[0]
	assert.Equal(t, Folder, src.Kind)
	assert.Equal(t, "src", src.Name)
	assert.Equal(t, "src", src.Path)

	require.Len(t, src.Children, 1)
	components := src.Children[0]
	assert.Equal(t, Folder, components.Kind)
	assert.Equal(t, "components", components.Name)
	assert.Equal(t, "src/components", components.Path)

	require.Len(t, components.Children, 1)
	app := components.Children[0]
	assert.Equal(t, File, app.Kind)
	assert.Equal(t, "App.tsx", app.Name)
	assert.Equal(t, "src/components/App.tsx", app.Path)
	assert.Equal(t, "export default App;", app.Content)
}

func TestUpsertFile_SharedPrefixCreatedOnce(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("src/a.ts", "a")
	require.NoError(t, err)
	_, err = tr.UpsertFile("src/b.ts", "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"src", "src/a.ts", "src/b.ts"}, paths(t, tr))
}

func TestUpsertFile_LaterPayloadWins(t *testing.T) {
	tr := New()
	created, err := tr.UpsertFile("index.html", "v1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = tr.UpsertFile("index.html", "v2")
	require.NoError(t, err)
	assert.False(t, created, "second write to the same path must update, not create")

	assert.Equal(t, 1, tr.Len())
	n, err := tr.Get("index.html")
	require.NoError(t, err)
	assert.Equal(t, "v2", n.Content)
}

func TestUpsertFile_FirstSeenOrder(t *testing.T) {
	tr := New()
	for _, p := range []string{"z.txt", "a/b.txt", "m.txt", "a/c.txt", "a/b.txt"} {
		_, err := tr.UpsertFile(p, p)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"z.txt", "a", "a/b.txt", "a/c.txt", "m.txt"}, paths(t, tr))
}

func TestUpsertFile_EmptySegmentsAreLiteralFolders(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a//b.txt", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/", "a//b.txt"}, paths(t, tr))

	mid, err := tr.Get("a/")
	require.NoError(t, err)
	assert.Equal(t, "", mid.Name)
	assert.True(t, mid.IsDir())
}

func TestUpsertFile_LeadingSlash(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("/index.html", "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "/index.html"}, paths(t, tr))
}

func TestUpsertFile_EmptyPath(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("", "x")
	assert.ErrorIs(t, err, ErrEmptyPath)
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, uint64(0), tr.Generation())
}

func TestUpsertFile_FileWhereFolderExists(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("src/main.ts", "x")
	require.NoError(t, err)
	before := tr.Generation()

	_, err = tr.UpsertFile("src", "oops")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKindConflict)

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "src", conflict.Path)
	assert.Equal(t, Folder, conflict.Existing)
	assert.Equal(t, File, conflict.Want)

	assert.Equal(t, before, tr.Generation(), "a rejected write must not mutate the tree")
	n, err := tr.Get("src")
	require.NoError(t, err)
	assert.Equal(t, Folder, n.Kind)
	assert.Empty(t, n.Content)
}

func TestUpsertFile_FolderWhereFileExists(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("README", "docs")
	require.NoError(t, err)

	_, err = tr.UpsertFile("README/intro.md", "x")
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "README", conflict.Path)
	assert.Equal(t, File, conflict.Existing)
	assert.Equal(t, Folder, conflict.Want)
	assert.Equal(t, 1, tr.Len())
}

func TestEdit_Isolation(t *testing.T) {
	tr := New()
	for _, p := range []string{"a/b.txt", "a/c.txt", "d.txt"} {
		_, err := tr.UpsertFile(p, "orig:"+p)
		require.NoError(t, err)
	}
	before := paths(t, tr)

	require.NoError(t, tr.Edit("a/b.txt", "edited"))

	assert.Equal(t, before, paths(t, tr), "edit must not change structure")
	b, err := tr.Get("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "edited", b.Content)
	for _, p := range []string{"a/c.txt", "d.txt"} {
		n, err := tr.Get(p)
		require.NoError(t, err)
		assert.Equal(t, "orig:"+p, n.Content)
	}
	a, err := tr.Get("a")
	require.NoError(t, err)
	assert.Empty(t, a.Content)
}

func TestEdit_Errors(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Edit("missing.txt", "x"), ErrNotFound)
	assert.ErrorIs(t, tr.Edit("a", "x"), ErrNotAFile)
}

func TestGet_NotFound(t *testing.T) {
	_, err := New().Get("nonexistent")
	assert.Equal(t, ErrNotFound, err)
}

func TestGet_ReturnsCopy(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)

	n, err := tr.Get("a")
	require.NoError(t, err)
	assert.Nil(t, n.Children, "Get must not expose descendants")

	n.Name = "changed"
	again, err := tr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestList(t *testing.T) {
	tr := New()
	for _, p := range []string{"a/b.txt", "a/c.txt", "z.txt"} {
		_, err := tr.UpsertFile(p, "")
		require.NoError(t, err)
	}

	roots := tr.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "a", roots[0].Name)
	assert.Equal(t, "z.txt", roots[1].Name)

	kids, err := tr.List("a")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "b.txt", kids[0].Name)
	assert.Equal(t, "c.txt", kids[1].Name)

	_, err = tr.List("z.txt")
	assert.ErrorIs(t, err, ErrNotAFolder)
	_, err = tr.List("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_LeadingSlashFolder(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a.txt", "a")
	require.NoError(t, err)

	_, err = tr.List("")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = tr.UpsertFile("/b.txt", "b")
	require.NoError(t, err)

	roots := tr.Roots()
	require.Len(t, roots, 2)
	assert.Equal(t, "", roots[1].Name)
	assert.Equal(t, Folder, roots[1].Kind)

	kids, err := tr.List("")
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "b.txt", kids[0].Name)
	assert.Equal(t, "/b.txt", kids[0].Path)
}

func TestReadOnly_HidesMutators(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)

	ro := tr.ReadOnly()
	_, canUpsert := ro.(interface {
		UpsertFile(path, content string) (bool, error)
	})
	assert.False(t, canUpsert)
	_, canReset := ro.(interface{ Reset() })
	assert.False(t, canReset)

	n, err := ro.Get("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", n.Content)
	assert.Equal(t, tr.Len(), ro.Len())
	assert.Equal(t, tr.Generation(), ro.Generation())
}

func TestSnapshot_IsIndependent(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)

	snap := tr.Snapshot()
	snap[0].Children[0].Content = "mutated"
	snap[0].Children = append(snap[0].Children, &Node{Name: "extra"})

	n, err := tr.Get("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b", n.Content)
	kids, err := tr.List("a")
	require.NoError(t, err)
	assert.Len(t, kids, 1)
}

func TestWalk_StopsOnError(t *testing.T) {
	tr := New()
	for _, p := range []string{"a.txt", "b.txt", "c.txt"} {
		_, err := tr.UpsertFile(p, "")
		require.NoError(t, err)
	}
	stop := errors.New("stop")
	var seen []string
	err := tr.Walk(func(n *Node) error {
		seen = append(seen, n.Path)
		if n.Path == "b.txt" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a.txt", "b.txt"}, seen)
}

func TestGeneration_TracksMutations(t *testing.T) {
	tr := New()
	g0 := tr.Generation()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)
	g1 := tr.Generation()
	assert.Greater(t, g1, g0)

	require.NoError(t, tr.Edit("a/b.txt", "c"))
	assert.Greater(t, tr.Generation(), g1)
}

func TestReset(t *testing.T) {
	tr := New()
	_, err := tr.UpsertFile("a/b.txt", "b")
	require.NoError(t, err)

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Snapshot())
	_, err = tr.Get("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSegments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a/b/c.txt", []string{"a", "b", "c.txt"}},
		{"/a", []string{"", "a"}},
		{"a//b", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Segments(tt.in))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "file", File.String())
	assert.Equal(t, "folder", Folder.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}
