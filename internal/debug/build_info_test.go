package debug

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.22.1",
		Main:      debug.Module{Path: "github.com/alphabill-org/poolvalidator", Version: "v0.1.0"},
		Settings: []debug.BuildSetting{
			{Key: "GOOS", Value: "linux"},
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "false"},
		},
	}
	require.Equal(t, "go=go1.22.1 version=v0.1.0 vcs.revision=abc123 vcs.modified=false", formatBuildInfo(info))

	info.Main.Version = ""
	info.Settings = nil
	require.Equal(t, "go=go1.22.1", formatBuildInfo(info))
}

func TestReadBuildInfo(t *testing.T) {
	// test binaries carry build info
	require.Contains(t, ReadBuildInfo(), "go=go")
}
