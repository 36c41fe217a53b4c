package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("METERFLOW_TEST_DIR", "/var/lib/meterflow")

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty path", path: "", want: ""},
		{name: "absolute path untouched", path: "/etc/meterflow/config.yaml", want: "/etc/meterflow/config.yaml"},
		{name: "bare tilde", path: "~", want: home},
		{name: "tilde prefix", path: "~/data/meterflow.db", want: filepath.Join(home, "data", "meterflow.db")},
		{name: "environment variable", path: "$METERFLOW_TEST_DIR/meterflow.db", want: "/var/lib/meterflow/meterflow.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.path))
		})
	}
}

func TestExpandPathLeavesMidPathTilde(t *testing.T) {
	got := ExpandPath("/data/~backup/db")

	assert.True(t, strings.Contains(got, "~backup"))
}
