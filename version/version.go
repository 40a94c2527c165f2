// Package version carries build metadata injected with -ldflags -X.
package version //nolint:revive // package name intentionally matches build-info convention

import "fmt"

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

// Describe renders the build metadata on one line, "dev" standing in for an unset version.
func Describe(name string) string {
	v := Version
	if v == "" {
		v = "dev"
	}

	out := fmt.Sprintf("%s %s", name, v)
	if Commit != "" {
		out += " (" + Commit
		if Date != "" {
			out += ", " + Date
		}
		out += ")"
	}
	if Repository != "" {
		out += " " + Repository
	}
	return out
}
