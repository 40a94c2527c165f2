package translationmanager

import "embed"

// Resources holds the bundled config, views, UI strings and migrations.
//
//go:embed resources
var Resources embed.FS

const (
	resourceConfigFile = "resources/config/translation-manager.toml"
	resourceViewsDir   = "resources/views"
	resourceLangDir    = "resources/lang"
	resourceMigrations = "resources/migrations"
)
