// Package iocache persists baselines and scoring runs.
package iocache

import (
	"sync"

	"github.com/allisonaustin/cluster-vis/internal/contract"
)

// StoreManager holds the baseline store and the run store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	baselines    contract.BaselineStore
	runs         contract.RunStore
}

var _ contract.StoreManager = &StoreManager{} // Compile-time check

// NewStoreManager wraps already opened stores. Either may be nil.
func NewStoreManager(baselines contract.BaselineStore, runs contract.RunStore) *StoreManager {
	return &StoreManager{baselines: baselines, runs: runs}
}

// GetBaselineStore returns the baseline store.
func (mgr *StoreManager) GetBaselineStore() contract.BaselineStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.baselines
}

// GetRunStore returns the run store, or nil when run tracking is disabled.
func (mgr *StoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}
