package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/clambin/enhanced-thermostat/internal/ledger"
)

var _ Store = &File{}

// File stores the ledger as a JSON document, in a file named after the key.
type File struct {
	dir string
	key string
}

func NewFile(dir, key string) *File {
	return &File{dir: dir, key: key}
}

func (f *File) Path() string {
	return filepath.Join(f.dir, f.key)
}

// Load returns the stored ledger. A missing file returns an empty ledger. A corrupt file returns an empty ledger and an error.
func (f *File) Load(_ context.Context) (ledger.Ledger, error) {
	body, err := os.ReadFile(f.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return ledger.Ledger{}, nil
	}
	if err != nil {
		return ledger.Ledger{}, &PersistenceError{Op: "load", Key: f.key, Err: err}
	}
	var l ledger.Ledger
	if err = json.Unmarshal(body, &l); err != nil {
		return ledger.Ledger{}, &PersistenceError{Op: "load", Key: f.key, Err: err}
	}
	if l == nil {
		l = ledger.Ledger{}
	}
	return l, nil
}

// Save writes the ledger to a temporary file and renames it in place, so a failed write never leaves a partial file.
func (f *File) Save(_ context.Context, l ledger.Ledger) error {
	if err := f.save(l); err != nil {
		return &PersistenceError{Op: "save", Key: f.key, Err: err}
	}
	return nil
}

func (f *File) save(l ledger.Ledger) error {
	body, err := json.Marshal(l)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, f.key+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err = tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path())
}
