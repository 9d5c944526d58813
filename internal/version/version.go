package version

import "fmt"

// Set at build time via -ldflags "-X docrag/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
)

func String() string { return fmt.Sprintf("docrag %s (%s)", Version, Commit) }
