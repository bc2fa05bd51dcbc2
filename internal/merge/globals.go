package merge

// Build information, overridden with -ldflags "-X logmerge/internal/merge.Version=..."
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
