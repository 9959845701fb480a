// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at link time:
//
//	go build -ldflags "-X github.com/soyeahso/agentforge/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/agentforge/internal/version.Commit=abc123
//	  -X github.com/soyeahso/agentforge/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the one-line description printed by "agentforge version".
func Info() string {
	return fmt.Sprintf("agentforge %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies agentforge to LLM providers.
func UserAgent() string {
	return fmt.Sprintf("agentforge/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
