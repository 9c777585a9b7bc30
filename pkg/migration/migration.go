// Package migration runs and tracks the relational schema migrations.
//
// Usage (in database/migrations):
//
//	func init() {
//	    migration.Register("20260101000001_create_products_table", &CreateProductsTable{})
//	}
//
// Run from CLI:
//
//	catalog migrate             // run all pending
//	catalog migrate:rollback    // rollback last batch
//	catalog db:reset --force    // roll back everything, then migrate
package migration

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/logger"
	"gorm.io/gorm"
)

// Migration is the interface every migration must implement.
type Migration interface {
	// Up applies the migration.
	Up(db *gorm.DB) error
	// Down reverses the migration.
	Down(db *gorm.DB) error
}

// migrationRecord is the GORM model stored in the tracking table.
type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "catalog_migrations" }

// ------------------- Registry -------------------

type registeredMigration struct {
	name string
	m    Migration
}

var registry []registeredMigration

// Register adds a migration to the global registry.
// name should be timestamp-prefixed, e.g. "20260101000000_create_users_table".
func Register(name string, m Migration) {
	registry = append(registry, registeredMigration{name: name, m: m})
}

func sortedRegistry() []registeredMigration {
	out := append([]registeredMigration(nil), registry...)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// ------------------- Runner -------------------

// Runner executes and tracks migrations.
type Runner struct {
	db  *gorm.DB
	out io.Writer
}

// New creates a Runner backed by db. Progress lines go to io.Discard
// unless WithOutput is used.
func New(db *gorm.DB) *Runner {
	return &Runner{db: db, out: io.Discard}
}

// WithOutput directs human-readable progress to w.
func (r *Runner) WithOutput(w io.Writer) *Runner {
	r.out = w
	return r
}

// EnsureTable creates the tracking table if it does not exist.
func (r *Runner) EnsureTable() error {
	return r.db.AutoMigrate(&migrationRecord{})
}

// Pending returns migrations that have not yet been run, ordered by name.
func (r *Runner) Pending() ([]registeredMigration, error) {
	var ran []migrationRecord
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}

	ranSet := make(map[string]bool, len(ran))
	for _, rec := range ran {
		ranSet[rec.Name] = true
	}

	var pending []registeredMigration
	for _, reg := range sortedRegistry() {
		if !ranSet[reg.name] {
			pending = append(pending, reg)
		}
	}
	return pending, nil
}

// Run executes all pending migrations in a single batch.
func (r *Runner) Run() error {
	if err := r.EnsureTable(); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}

	pending, err := r.Pending()
	if err != nil {
		return fmt.Errorf("migration: fetch pending: %w", err)
	}

	if len(pending) == 0 {
		logger.Info("migration: nothing to migrate")
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return nil
	}

	batch := r.lastBatch() + 1

	for _, reg := range pending {
		logger.Debug("migration: running", "name", reg.name)
		fmt.Fprintf(r.out, "  ▶ Migrating: %s\n", reg.name)

		if err := reg.m.Up(r.db); err != nil {
			return fmt.Errorf("migration: %s up: %w", reg.name, err)
		}

		record := migrationRecord{Name: reg.name, Batch: batch}
		if err := r.db.Create(&record).Error; err != nil {
			return fmt.Errorf("migration: record %s: %w", reg.name, err)
		}

		fmt.Fprintf(r.out, "  ✅ Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return nil
}

// Rollback reverses all migrations from the most recent batch.
func (r *Runner) Rollback() error {
	if err := r.EnsureTable(); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.lastBatch()
	if last == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return nil
	}
	return r.rollbackWhere("batch = ?", last)
}

// Reset reverses every applied migration and runs them all again.
// It destroys data and is only reachable from an explicit CLI command.
func (r *Runner) Reset() error {
	if err := r.EnsureTable(); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	if err := r.rollbackWhere("batch > ?", 0); err != nil {
		return err
	}
	return r.Run()
}

func (r *Runner) rollbackWhere(query string, args ...any) error {
	var records []migrationRecord
	if err := r.db.Where(query, args...).Order("id desc").Find(&records).Error; err != nil {
		return err
	}

	regMap := make(map[string]Migration, len(registry))
	for _, reg := range registry {
		regMap[reg.name] = reg.m
	}

	for _, rec := range records {
		rec := rec
		m, ok := regMap[rec.Name]
		if !ok {
			return fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}

		fmt.Fprintf(r.out, "  ◀ Rolling back: %s\n", rec.Name)
		logger.Info("migration: rolling back", "name", rec.Name)

		if err := m.Down(r.db); err != nil {
			return fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}

		if err := r.db.Delete(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// StatusRow describes one registered migration.
type StatusRow struct {
	Name  string
	Ran   bool
	Batch int
}

// Status reports every registered migration and whether it has been run.
func (r *Runner) Status() ([]StatusRow, error) {
	if err := r.EnsureTable(); err != nil {
		return nil, err
	}

	var ran []migrationRecord
	if err := r.db.Find(&ran).Error; err != nil {
		return nil, err
	}

	ranMap := make(map[string]migrationRecord, len(ran))
	for _, rec := range ran {
		ranMap[rec.Name] = rec
	}

	rows := make([]StatusRow, 0, len(registry))
	for _, reg := range sortedRegistry() {
		rec, ok := ranMap[reg.name]
		rows = append(rows, StatusRow{Name: reg.name, Ran: ok, Batch: rec.Batch})
	}
	return rows, nil
}

// PrintStatus writes Status as a table.
func (r *Runner) PrintStatus(w io.Writer) error {
	rows, err := r.Status()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-60s  %-8s  %s\n", "Migration", "Status", "Batch")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, row := range rows {
		if row.Ran {
			fmt.Fprintf(w, "%-60s  %-8s  %d\n", row.Name, "Ran", row.Batch)
		} else {
			fmt.Fprintf(w, "%-60s  %-8s  -\n", row.Name, "Pending")
		}
	}
	return nil
}

func (r *Runner) lastBatch() int {
	var maxBatch struct{ Max int }
	r.db.Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&maxBatch)
	return maxBatch.Max
}
