package mount

import (
	"path"

	"mvdan.cc/gofumpt/format"
)

// FormatSource runs gofumpt over src when p names a Go file. Anything
// else, and Go that does not parse, is returned as is.
func FormatSource(p string, src []byte) []byte {
	if path.Ext(p) != ".go" {
		return src
	}
	if out, err := format.Source(src, format.Options{}); err == nil {
		return out
	}
	return src
}
