package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		info        debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "module version",
			info:        debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}},
			wantVersion: "v1.2.3",
		},
		{
			name: "vcs settings",
			info: debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.modified", Value: "true"},
					{Key: "vcs.time", Value: "2024-03-01T10:00:00Z"},
				},
			},
			wantVersion: "dev-20240301",
			wantCommit:  "0123456-dirty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldVersion, oldCommit := Version, Commit
			defer func() { Version, Commit = oldVersion, oldCommit }()
			Version, Commit = "", ""

			fromBuildInfo(&tt.info)
			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Get() = %+v, want populated version and commit", info)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q", info.Platform)
	}
	if !strings.Contains(Full(), info.Commit) {
		t.Errorf("Full() = %q", Full())
	}
}
