package translationmanager

import (
	"github.com/pitabwire/translation-manager/data"
)

const (
	StatusSaved   = 0
	StatusChanged = 1

	// JSONGroup holds the flat translations of <locale>.json files.
	JSONGroup = "_json"
)

// Translation is one value of a key in a group for a locale.
type Translation struct {
	data.BaseModel

	Status int     `gorm:"not null;default:0"`
	Locale string  `gorm:"type:varchar(255);not null"`
	Group  string  `gorm:"column:group;type:varchar(255);not null"`
	Key    string  `gorm:"type:text;not null"`
	Value  *string `gorm:"type:text"`
}

func (Translation) TableName() string {
	return "ltm_translations"
}

// ValueString returns the value, empty when null.
func (t *Translation) ValueString() string {
	if t == nil || t.Value == nil {
		return ""
	}
	return *t.Value
}

// IsChanged reports whether the row was edited since the last export.
func (t *Translation) IsChanged() bool {
	return t != nil && t.Status == StatusChanged
}

func stringPtr(s string) *string {
	return &s
}
