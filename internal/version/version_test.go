package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })

	tests := []struct {
		name        string
		info        *debug.BuildInfo
		wantVersion string
		wantCommit  string
	}{
		{
			name: "dirty checkout with vcs time",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef"},
					{Key: "vcs.modified", Value: "true"},
					{Key: "vcs.time", Value: "2026-03-14T09:26:53Z"},
				},
			},
			wantVersion: "dev-20260314",
			wantCommit:  "0123456-dirty",
		},
		{
			name: "module version wins over vcs time",
			info: &debug.BuildInfo{
				Main: debug.Module{Version: "v0.3.0"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "abc"},
					{Key: "vcs.time", Value: "2026-03-14T09:26:53Z"},
				},
			},
			wantVersion: "v0.3.0",
			wantCommit:  "abc",
		},
		{
			name:        "no vcs settings",
			info:        &debug.BuildInfo{},
			wantVersion: "",
			wantCommit:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = "", ""
			fromBuildInfo(func() (*debug.BuildInfo, bool) { return tt.info, true })

			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
		})
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) || !strings.Contains(got, "commit: "+Commit) {
		t.Errorf("Full() = %q, want version %q and commit %q", got, Version, Commit)
	}
}
