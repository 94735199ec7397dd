package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"
	"strings"

	"github.com/dotcommander/unai/internal/provider"
	"github.com/dotcommander/unai/internal/storage"
)

// BuildInfo is injected by the build pipeline.
type BuildInfo struct {
	Version   string
	CommitSHA string
}

// versionTemplate returns the Cobra version template: version, short commit,
// Go version and platform, then the provider backends compiled in.
func versionTemplate(b BuildInfo, backends []provider.Backend) string {
	v := "{{.Name}} {{.Version}}"
	if len(b.CommitSHA) >= storage.IDShort {
		v += " (" + b.CommitSHA[:storage.IDShort] + ")"
	}
	v += fmt.Sprintf(" %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
	if len(backends) > 0 {
		names := make([]string, len(backends))
		for i, backend := range backends {
			names[i] = string(backend)
		}
		v += "backends: " + strings.Join(names, ", ") + "\n"
	}
	return v
}

func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}

	if b.Version == "" {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = info.Main.Version
		}
	}

	// Extract VCS info embedded by Go 1.18+.
	var vcsRev, vcsModified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsRev = s.Value
		case "vcs.modified":
			vcsModified = s.Value
		}
	}

	if b.CommitSHA == "" && vcsRev != "" {
		b.CommitSHA = vcsRev
	}

	if b.Version == "" {
		b.Version = "dev"
		if len(vcsRev) >= storage.IDShort {
			b.Version += "-" + vcsRev[:storage.IDShort]
		}
		if vcsModified == "true" {
			b.Version += "-dirty"
		}
	}

	return b
}
