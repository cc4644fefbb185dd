// Package store persists the runtime ledger.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/clambin/enhanced-thermostat/internal/ledger"
)

// A Store loads and saves the runtime ledger of one thermostat.
type Store interface {
	Load(ctx context.Context) (ledger.Ledger, error)
	Save(ctx context.Context, l ledger.Ledger) error
}

var invalidKeyChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Key returns the storage key for the thermostat with the provided name.
func Key(name string) string {
	name = invalidKeyChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return "enhanced_thermostat_" + strings.Trim(name, "_") + "_runtime"
}

var _ error = &PersistenceError{}

// PersistenceError is returned when the ledger cannot be loaded or saved.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s %s: %s", e.Op, e.Key, e.Err.Error())
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(err error) bool {
	var persistenceError *PersistenceError
	return errors.As(err, &persistenceError)
}
