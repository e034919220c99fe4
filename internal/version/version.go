// Package version carries the build metadata stamped in by the linker:
//
//	go build -ldflags "-X github.com/MeKo-Tech/receiptminer/internal/version.Version=v1.2.0"
package version

// Set by -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// UserAgent identifies receiptminer in outgoing HTTP requests.
func UserAgent() string {
	return "receiptminer/" + Version
}
