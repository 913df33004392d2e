// Package mount projects the project tree into sandbox mount descriptors
// and materialises descriptors onto filesystems.
package mount

import (
	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

// Project builds a descriptor from roots. Keys follow tree order.
// A folder without children becomes an empty directory.
func Project(roots []*tree.Node) *api.Descriptor {
	desc := api.NewDescriptor()
	for _, n := range roots {
		desc.Set(n.Name, projectNode(n))
	}
	return desc
}

func projectNode(n *tree.Node) *api.Entry {
	if n.Kind == tree.Folder {
		return api.DirEntry(Project(n.Children))
	}
	return api.FileEntry(n.Content)
}

// ProjectTree projects the live tree under its read lock, so the result
// reflects every mutation that completed before the call.
func ProjectTree(t tree.Reader) *api.Descriptor {
	var desc *api.Descriptor
	t.Read(func(roots []*tree.Node) {
		desc = Project(roots)
	})
	return desc
}
