package nfsmount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountOptions(t *testing.T) {
	tests := []struct {
		goos     string
		writable bool
		want     string
	}{
		{"linux", false, "port=2049,mountport=2049,vers=3,tcp,local_lock=all,nolock,ro"},
		{"linux", true, "port=2049,mountport=2049,vers=3,tcp,local_lock=all,nolock"},
		{"darwin", false, "port=2049,mountport=2049,vers=3,tcp,locallocks,noresvport,rdonly"},
		{"darwin", true, "port=2049,mountport=2049,vers=3,tcp,locallocks,noresvport"},
	}
	for _, tt := range tests {
		got, err := mountOptions(tt.goos, 2049, tt.writable)
		require.NoError(t, err, tt.goos)
		assert.Equal(t, tt.want, got)
	}

	_, err := mountOptions("plan9", 2049, false)
	assert.ErrorContains(t, err, "plan9")
}
