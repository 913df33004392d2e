package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSource(t *testing.T) {
	tests := []struct {
		name, path, in, want string
	}{
		{"go", "main.go", "package main\n\nfunc A()  {\nreturn\n}\n", "package main\n\nfunc A() {\n\treturn\n}\n"},
		{"tsx untouched", "src/App.tsx", "export default function App() {  return null }\n", "export default function App() {  return null }\n"},
		{"broken go untouched", "main.go", "func broken {{{", "func broken {{{"},
		{"go suffix in dir only", "go/README", "x  =  1", "x  =  1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(FormatSource(tt.path, []byte(tt.in))))
		})
	}
}
