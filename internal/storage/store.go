package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tos-network/hashfarm/internal/catalog"
	"github.com/tos-network/hashfarm/internal/coins"
	"github.com/tos-network/hashfarm/internal/economy"
	"github.com/tos-network/hashfarm/internal/util"
)

// Store keeps the encoded save record.
type Store interface {
	// Save replaces the stored record. A concurrent Load sees either the old
	// or the new record, never a partial one.
	Save(ctx context.Context, data []byte) error
	// Load returns the stored record or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	Close() error
}

// BackupLoader is implemented by stores that keep the previous record.
type BackupLoader interface {
	LoadBackup(ctx context.Context) ([]byte, error)
}

// SaveTimer is implemented by stores that know when the record was written.
type SaveTimer interface {
	// SavedAt returns the time of the last write, zero if there is none.
	SavedAt(ctx context.Context) (time.Time, error)
}

// SaveState encodes s and writes it to store.
func SaveState(ctx context.Context, store Store, s *economy.State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return store.Save(ctx, data)
}

// LoadState restores the saved state. A missing record, an unreadable store or
// a corrupt record yields a fresh default state; loaded reports which happened.
// When the main record is corrupt the store's backup is tried first.
func LoadState(ctx context.Context, store Store, cat *catalog.Catalog, reg *coins.Registry, params economy.Params, now time.Time) (s *economy.State, loaded bool) {
	rec, err := loadRecord(ctx, store.Load)
	if err != nil && !errors.Is(err, ErrNotFound) {
		util.Warnf("Save record unusable: %v", err)
		if b, ok := store.(BackupLoader); ok {
			if rec, err = loadRecord(ctx, b.LoadBackup); err == nil {
				util.Warn("Restored from backup save record")
			}
		}
	}
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			util.Warnf("Starting with a fresh state: %v", err)
		}
		return economy.NewState(cat, reg, params, now), false
	}
	return Deserialize(rec, cat, reg, params, now), true
}

func loadRecord(ctx context.Context, load func(context.Context) ([]byte, error)) (*Record, error) {
	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
