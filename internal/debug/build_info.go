package debug

import (
	"runtime/debug"
	"strings"
)

/*
ReadBuildInfo returns Go version, main module version and VCS settings of the
binary as space separated "key=value" pairs, empty string when build info is
not available.
*/
func ReadBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return formatBuildInfo(info)
}

func formatBuildInfo(info *debug.BuildInfo) string {
	fields := []string{"go=" + info.GoVersion}
	if v := info.Main.Version; v != "" {
		fields = append(fields, "version="+v)
	}
	for _, s := range info.Settings {
		if strings.HasPrefix(s.Key, "vcs.") {
			fields = append(fields, s.Key+"="+s.Value)
		}
	}
	return strings.Join(fields, " ")
}
