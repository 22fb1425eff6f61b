// Package migration runs versioned schema changes and records them in the
// ferremas_migrations table, grouped in batches so the last batch can be
// rolled back.
//
//	func init() {
//	    migration.Register("2024_05_01_000001_create_catalog", &CreateCatalog{})
//	}
//
//	ferremas migrate             // run pending
//	ferremas migrate:rollback    // undo the last batch
//	ferremas migrate:status
package migration

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
	"gorm.io/gorm"
)

// Migration is one reversible schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "ferremas_migrations" }

type registeredMigration struct {
	name string
	m    Migration
}

var registry []registeredMigration

// Register adds a migration. Names must sort chronologically.
func Register(name string, m Migration) {
	registry = append(registry, registeredMigration{name: name, m: m})
}

// ErrNoMigrations is returned by Run when nothing is registered.
var ErrNoMigrations = errors.New("no migrations registered")

// Runner executes and tracks migrations. Progress lines go to Out.
type Runner struct {
	db  *gorm.DB
	Out io.Writer
}

// New returns a Runner that discards progress output.
func New(db *gorm.DB) *Runner {
	return &Runner{db: db, Out: io.Discard}
}

// StatusRow is one line of migrate:status.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

func (r *Runner) ensureTable() error {
	return r.db.AutoMigrate(&migrationRecord{})
}

func (r *Runner) pending() ([]registeredMigration, error) {
	var ran []migrationRecord
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}

	done := make(map[string]bool, len(ran))
	for _, rec := range ran {
		done[rec.Name] = true
	}

	var pending []registeredMigration
	for _, reg := range sorted() {
		if !done[reg.name] {
			pending = append(pending, reg)
		}
	}
	return pending, nil
}

// Run applies every pending migration as one batch. Each migration and its
// record commit together.
func (r *Runner) Run() (int, error) {
	if len(registry) == 0 {
		return 0, ErrNoMigrations
	}
	if err := r.ensureTable(); err != nil {
		return 0, fmt.Errorf("migration: ensure table: %w", err)
	}

	pending, err := r.pending()
	if err != nil {
		return 0, fmt.Errorf("migration: fetch pending: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.Out, "Nothing to migrate.")
		return 0, nil
	}

	batch, err := r.lastBatch()
	if err != nil {
		return 0, err
	}
	batch++

	for _, reg := range pending {
		fmt.Fprintf(r.Out, "  Migrating: %s\n", reg.name)
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := reg.m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: reg.name, Batch: batch}).Error
		})
		if err != nil {
			return 0, fmt.Errorf("migration: %s up: %w", reg.name, err)
		}
		fmt.Fprintf(r.Out, "  Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return len(pending), nil
}

// Rollback reverses the most recent batch in reverse order.
func (r *Runner) Rollback() (int, error) {
	if err := r.ensureTable(); err != nil {
		return 0, fmt.Errorf("migration: ensure table: %w", err)
	}

	batch, err := r.lastBatch()
	if err != nil {
		return 0, err
	}
	if batch == 0 {
		fmt.Fprintln(r.Out, "Nothing to roll back.")
		return 0, nil
	}

	var records []migrationRecord
	if err := r.db.Where("batch = ?", batch).Order("id desc").Find(&records).Error; err != nil {
		return 0, err
	}

	known := make(map[string]Migration, len(registry))
	for _, reg := range registry {
		known[reg.name] = reg.m
	}

	for _, rec := range records {
		m, ok := known[rec.Name]
		if !ok {
			return 0, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}
		fmt.Fprintf(r.Out, "  Rolling back: %s\n", rec.Name)
		rec := rec
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := m.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&rec).Error
		})
		if err != nil {
			return 0, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
	}

	logger.Info("migration: rolled back", "count", len(records), "batch", batch)
	return len(records), nil
}

// Status lists every registered migration and whether it ran.
func (r *Runner) Status() ([]StatusRow, error) {
	if err := r.ensureTable(); err != nil {
		return nil, err
	}

	var ran []migrationRecord
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}
	batches := make(map[string]int, len(ran))
	for _, rec := range ran {
		batches[rec.Name] = rec.Batch
	}

	var rows []StatusRow
	for _, reg := range sorted() {
		b, ok := batches[reg.name]
		rows = append(rows, StatusRow{Name: reg.name, Ran: ok, Batch: b})
	}
	return rows, nil
}

func (r *Runner) lastBatch() (int, error) {
	var last struct{ Max int }
	if err := r.db.Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) AS max").Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("migration: read batch: %w", err)
	}
	return last.Max, nil
}

func sorted() []registeredMigration {
	out := make([]registeredMigration, len(registry))
	copy(out, registry)
	sort.SliceStable(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
