package persistence

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/neogan74/savekit/internal/logger"
)

const (
	slotPrefix  = "slot:"
	mtimePrefix = "mtime:"
)

// BadgerEngine implements Engine using BadgerDB
type BadgerEngine struct {
	db  *badger.DB
	log logger.Logger
}

// NewBadgerEngine creates a new BadgerDB persistence engine
func NewBadgerEngine(dataDir string, syncWrites bool, log logger.Logger) (*BadgerEngine, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(dataDir)
	opts.SyncWrites = syncWrites
	opts.Logger = nil // Disable BadgerDB internal logging

	// Save slots are small; keep the footprint modest.
	opts.ValueLogFileSize = 16 << 20
	opts.MemTableSize = 8 << 20
	opts.NumMemtables = 2
	opts.NumLevelZeroTables = 2
	opts.NumLevelZeroTablesStall = 4

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	log.Info("BadgerDB remote slot initialized",
		logger.String("data_dir", dataDir),
		logger.Bool("sync_writes", syncWrites))

	return &BadgerEngine{db: db, log: log}, nil
}

// CollectGarbage runs one value log GC pass. ErrNoRewrite is not an error.
func (b *BadgerEngine) CollectGarbage(discardRatio float64) error {
	err := b.db.RunValueLogGC(discardRatio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		b.log.Warn("BadgerDB garbage collection failed", logger.Error(err))
		return err
	}
	return nil
}

func (b *BadgerEngine) Get(_ context.Context, key string) (Object, error) {
	var obj Object
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(slotPrefix + key))
		if err != nil {
			return err
		}
		obj.Value, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		obj.ModTime, err = readModTime(txn, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Object{}, ErrKeyNotFound
	}
	return obj, err
}

func (b *BadgerEngine) Set(_ context.Context, key string, value []byte) (time.Time, error) {
	mod := time.Now().UTC()
	err := b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(slotPrefix+key), value); err != nil {
			return err
		}
		return txn.Set([]byte(mtimePrefix+key), encodeModTime(mod))
	})
	if err != nil {
		return time.Time{}, err
	}
	return mod, nil
}

func (b *BadgerEngine) ModTime(_ context.Context, key string) (time.Time, error) {
	var mod time.Time
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(slotPrefix + key)); err != nil {
			return err
		}
		var err error
		mod, err = readModTime(txn, key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, ErrKeyNotFound
	}
	return mod, err
}

func (b *BadgerEngine) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(slotPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(mtimePrefix + key))
	})
}

func (b *BadgerEngine) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	searchPrefix := slotPrefix + prefix

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(searchPrefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), slotPrefix))
		}
		return nil
	})
	return keys, err
}

func (b *BadgerEngine) Close() error {
	return b.db.Close()
}

// Backup writes a full BadgerDB backup of every slot to path.
func (b *BadgerEngine) Backup(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer file.Close()

	if _, err := b.db.Backup(file, 0); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	b.log.Info("Slot backup completed", logger.String("path", path))
	return nil
}

// Restore loads a backup written by Backup.
func (b *BadgerEngine) Restore(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	if err := b.db.Load(file, 16); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	b.log.Info("Slot restore completed", logger.String("path", path))
	return nil
}

func readModTime(txn *badger.Txn, key string) (time.Time, error) {
	item, err := txn.Get([]byte(mtimePrefix + key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var mod time.Time
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt mtime record for %q", key)
		}
		mod = time.Unix(0, int64(binary.BigEndian.Uint64(val))).UTC()
		return nil
	})
	return mod, err
}

func encodeModTime(t time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}
