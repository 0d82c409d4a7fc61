package device

import "github.com/aimfab/gem/item"

// PersistenceStore durably saves equipment-constant values across
// restarts. Implementations are expected to be swapped in by the
// caller (a file, a local database, a remote config service); none is
// provided here since spec.md leaves the backing store unspecified
// (Open Question (b)).
type PersistenceStore interface {
	LoadECIDs() (map[uint32]item.Item, error)
	SaveECID(id uint32, value item.Item) error
}

// NopStore is a PersistenceStore that persists nothing; New uses it
// whenever it is given a nil store.
type NopStore struct{}

func (NopStore) LoadECIDs() (map[uint32]item.Item, error) { return nil, nil }
func (NopStore) SaveECID(uint32, item.Item) error         { return nil }
