package version_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/translation-manager/version"
)

func TestDescribe(t *testing.T) {
	t.Cleanup(func() {
		version.Version, version.Commit, version.Date, version.Repository = "", "", "", ""
	})

	require.Equal(t, "translation-manager dev", version.Describe("translation-manager"))

	version.Version = "v1.4.0"
	version.Commit = "3e56fb9"
	version.Date = "2026-10-01"
	version.Repository = "github.com/pitabwire/translation-manager"
	require.Equal(t,
		"translation-manager v1.4.0 (3e56fb9, 2026-10-01) github.com/pitabwire/translation-manager",
		version.Describe("translation-manager"))
}
