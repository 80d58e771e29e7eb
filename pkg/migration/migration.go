// Package migration runs ordered, reversible schema migrations and records
// them in a tracking table.
//
//	r := migration.New(db, os.Stdout, migrations.All()...)
//	r.Run()      // apply pending, as one batch
//	r.Rollback() // revert the last batch
package migration

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/checkout/pkg/logger"
)

// Migration is the interface every migration must implement.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// Entry pairs a migration with its timestamp-prefixed name.
type Entry struct {
	Name      string
	Migration Migration
}

type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "schema_migrations" }

// Runner executes and tracks migrations.
type Runner struct {
	db      *gorm.DB
	out     io.Writer
	entries []Entry
}

// New sorts entries by name; timestamps sort lexicographically.
func New(db *gorm.DB, out io.Writer, entries ...Entry) *Runner {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out, entries: sorted}
}

func (r *Runner) ensureTable() error {
	return r.db.AutoMigrate(&migrationRecord{})
}

func (r *Runner) ran() (map[string]migrationRecord, error) {
	var records []migrationRecord
	if err := r.db.Find(&records).Error; err != nil {
		return nil, err
	}
	out := make(map[string]migrationRecord, len(records))
	for _, rec := range records {
		out[rec.Name] = rec
	}
	return out, nil
}

// Pending returns the names of migrations that have not run yet.
func (r *Runner) Pending() ([]string, error) {
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("migration: ensure table: %w", err)
	}
	ran, err := r.ran()
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, e := range r.entries {
		if _, ok := ran[e.Name]; !ok {
			pending = append(pending, e.Name)
		}
	}
	return pending, nil
}

// Run applies every pending migration as one batch.
func (r *Runner) Run() error {
	pending, err := r.Pending()
	if err != nil {
		return fmt.Errorf("migration: fetch pending: %w", err)
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.out, "Nothing to migrate.")
		return nil
	}

	batch := r.lastBatch() + 1
	byName := r.byName()

	for _, name := range pending {
		fmt.Fprintf(r.out, "  ▶ Migrating: %s\n", name)

		if err := byName[name].Up(r.db); err != nil {
			return fmt.Errorf("migration: %s up: %w", name, err)
		}
		if err := r.db.Create(&migrationRecord{Name: name, Batch: batch}).Error; err != nil {
			return fmt.Errorf("migration: record %s: %w", name, err)
		}

		fmt.Fprintf(r.out, "  ✅ Migrated:  %s\n", name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return nil
}

// Rollback reverses the migrations of the most recent batch, newest first.
func (r *Runner) Rollback() error {
	if err := r.ensureTable(); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}

	last := r.lastBatch()
	if last == 0 {
		fmt.Fprintln(r.out, "Nothing to roll back.")
		return nil
	}

	var records []migrationRecord
	if err := r.db.Where("batch = ?", last).Order("id desc").Find(&records).Error; err != nil {
		return err
	}

	byName := r.byName()
	for _, rec := range records {
		m, ok := byName[rec.Name]
		if !ok {
			return fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}

		fmt.Fprintf(r.out, "  ◀ Rolling back: %s\n", rec.Name)
		if err := m.Down(r.db); err != nil {
			return fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		if err := r.db.Delete(&rec).Error; err != nil {
			return err
		}
		fmt.Fprintf(r.out, "  ✅ Rolled back:  %s\n", rec.Name)
	}

	logger.Info("migration: rolled back", "batch", last, "count", len(records))
	return nil
}

// Status prints every migration and whether it has run.
func (r *Runner) Status() error {
	if err := r.ensureTable(); err != nil {
		return err
	}
	ran, err := r.ran()
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "%-50s  %-8s  %s\n", "Migration", "Status", "Batch")
	fmt.Fprintln(r.out, strings.Repeat("-", 68))
	for _, e := range r.entries {
		if rec, ok := ran[e.Name]; ok {
			fmt.Fprintf(r.out, "%-50s  %-8s  %d\n", e.Name, "Ran", rec.Batch)
		} else {
			fmt.Fprintf(r.out, "%-50s  %-8s  -\n", e.Name, "Pending")
		}
	}
	return nil
}

func (r *Runner) byName() map[string]Migration {
	out := make(map[string]Migration, len(r.entries))
	for _, e := range r.entries {
		out[e.Name] = e.Migration
	}
	return out
}

func (r *Runner) lastBatch() int {
	var maxBatch struct{ Max int }
	r.db.Model(&migrationRecord{}).Select("COALESCE(MAX(batch), 0) as max").Scan(&maxBatch)
	return maxBatch.Max
}
