package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Region is a first-level administrative division, ordered north to south.
type Region struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:5;uniqueIndex;not null" json:"code"`
	Name    string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Ordinal int    `gorm:"not null;index" json:"ordinal"`

	Communes []Commune `json:"communes,omitempty"`
}

// Commune names are unique within a region. Lookup holds the folded name
// used for matching user input.
type Commune struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RegionID uint   `gorm:"not null;uniqueIndex:idx_commune_region_name,priority:1" json:"region_id"`
	Name     string `gorm:"size:100;not null;uniqueIndex:idx_commune_region_name,priority:2" json:"name"`
	Lookup   string `gorm:"size:100;not null;index" json:"-"`

	Region *Region `json:"region,omitempty"`
}

func (c *Commune) BeforeSave(*gorm.DB) error {
	c.Lookup = FoldName(c.Name)
	return nil
}

// FoldName lowercases s, strips diacritics and collapses spaces, so
// "Ñuñoa" and " nunoa" compare equal.
func FoldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
