// Package migrations registers the schema history of the store. Importing
// it (the CLI and database/testdb do) is enough to make migrate see every
// step.
package migrations

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tables is a Migration that auto-migrates a fixed set of models and drops
// them in reverse on rollback.
type tables struct {
	models []interface{}
	after  func(db *gorm.DB) error
}

func (m *tables) Up(db *gorm.DB) error {
	if err := db.AutoMigrate(m.models...); err != nil {
		return err
	}
	if m.after != nil {
		return m.after(db)
	}
	return nil
}

func (m *tables) Down(db *gorm.DB) error {
	for i := len(m.models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(m.models[i]); err != nil {
			return err
		}
	}
	return nil
}

// insertMissing adds rows whose primary key is not present yet.
func insertMissing(db *gorm.DB, rows interface{}) error {
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}
