package store

import (
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/RyanBlaney/sonido-sentinel/logging"
)

// BadgerOptions configures the on-device database.
type BadgerOptions struct {
	// Dir is where the database files live. Ignored when InMemory is set.
	Dir string
	// InMemory keeps everything in RAM. Used by tests and one-shot runs.
	InMemory bool
	// Logger receives badger's internal messages. Defaults to a logger
	// that forwards warnings and errors and drops the rest.
	Logger badger.Logger
}

// Badger is the BadgerDB-backed store.
type Badger struct {
	db
}

// NewBadger opens (or creates) the database under opts.Dir.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, errors.New("store: badger dir must not be empty")
		}
		bopts = badger.DefaultOptions(opts.Dir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = badgerLogger{log: logging.WithFields(logging.Fields{
			"component": "store_badger",
		})}
	}
	bopts = bopts.WithLogger(logger)

	engine, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %q: %w", opts.Dir, err)
	}
	return &Badger{db: db{b: &badgerBackend{engine: engine}}}, nil
}

type badgerBackend struct {
	engine *badger.DB
}

func (b *badgerBackend) get(key string) ([]byte, error) {
	var raw []byte
	err := b.engine.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (b *badgerBackend) set(key string, value []byte) error {
	return b.engine.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *badgerBackend) delete(key string) error {
	err := b.engine.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

func (b *badgerBackend) scan(prefix string) ([]entry, error) {
	var entries []entry
	err := b.engine.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entries = append(entries, entry{
				key:   string(item.KeyCopy(nil)),
				value: value,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *badgerBackend) deleteAll(keys []string) error {
	wb := b.engine.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *badgerBackend) close() error {
	return b.engine.Close()
}

// badgerLogger adapts the structured logger to badger's interface.
// Badger is chatty at info level during compaction, so only warnings
// and errors get through.
type badgerLogger struct {
	log logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(errors.New(strings.TrimSpace(fmt.Sprintf(format, args...))), "badger error")
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
