package configpaths

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsUserFirst(t *testing.T) {
	type testCase struct {
		name string
		path string
		want string // json, yaml or toml
	}
	tests := []testCase{
		{name: "json", path: "/tmp/rig.json", want: "json"},
		{name: "yaml", path: "/tmp/rig.yaml", want: "yaml"},
		{name: "yml", path: "/tmp/rig.yml", want: "yaml"},
		{name: "toml", path: "/tmp/rig.toml", want: "toml"},
		{name: "no extension", path: "/tmp/rig", want: "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, y, tm := ConfigCandidatePaths(tt.path)
			got := map[string][]string{"json": j, "yaml": y, "toml": tm}
			require.NotEmpty(t, got[tt.want])
			assert.Equal(t, tt.path, got[tt.want][0])
		})
	}
}

func TestConfigCandidatePathsDefaults(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix config locations")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	j, y, tm := ConfigCandidatePaths("")
	assert.Contains(t, j, filepath.Join("/xdg", "hshifter", "serve.json"))
	assert.Contains(t, y, filepath.Join("/xdg", "hshifter", "hshifter.yml"))
	assert.Contains(t, tm, "/etc/hshifter/config.toml")

	key, err := DefaultKeyPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "hshifter", KeyFileName), key)
}

func TestFindUserConfig(t *testing.T) {
	t.Setenv(EnvConfig, "/env/config.yaml")

	assert.Equal(t, "a.toml", FindUserConfig([]string{"serve", "--config=a.toml"}))
	assert.Equal(t, "b.json", FindUserConfig([]string{"--config", "b.json", "serve"}))
	assert.Equal(t, "/env/config.yaml", FindUserConfig([]string{"serve", "--config"}))
}

func TestExt(t *testing.T) {
	assert.Equal(t, "yaml", Ext("yml"))
	assert.Equal(t, "toml", Ext("toml"))
	assert.Equal(t, "json", Ext(""))
}
