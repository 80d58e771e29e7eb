// Package seeders provides a registry of development seed functions.
//
// Define a seeder in any file in this package:
//
//	func init() {
//	    Register("demo_user", seedDemoUser)
//	}
//
// Then run it with: checkout seed
package seeders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shashiranjanraj/checkout/app/models"
)

// UserWriter is the part of the user store seeders write through. Both the
// gorm repository and the Mongo store satisfy it.
type UserWriter interface {
	Upsert(ctx context.Context, u *models.User) error
}

// SeederFunc is the signature for a seed function.
type SeederFunc func(ctx context.Context, users UserWriter, out io.Writer) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
// Call this from init() in your seeder files.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// RunAll executes every registered seeder in registration order.
// It stops on the first error.
func RunAll(ctx context.Context, users UserWriter, out io.Writer) error {
	mu.Lock()
	current := make([]seederEntry, len(entries))
	copy(current, entries)
	mu.Unlock()

	if len(current) == 0 {
		fmt.Fprintln(out, "  (no seeders registered)")
		return nil
	}

	for _, e := range current {
		fmt.Fprintf(out, "  • Running seeder: %s … ", e.name)
		if err := e.fn(ctx, users, out); err != nil {
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		fmt.Fprintln(out, "done")
	}
	return nil
}
