package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/edgarsignals/internal/common"
	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	docs   interfaces.DocumentStorage
	signal interfaces.SignalStorage
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewManager opens the database and builds every store on top of it
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")
	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:     db,
		docs:   NewDocStorage(db, logger),
		signal: NewSignalStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}
}

// DocumentStorage returns the document state store
func (m *Manager) DocumentStorage() interfaces.DocumentStorage {
	return m.docs
}

// SignalStorage returns the signal store
func (m *Manager) SignalStorage() interfaces.SignalStorage {
	return m.signal
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
