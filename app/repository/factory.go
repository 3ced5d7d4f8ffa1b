package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetRawEventRepository returns the raw event repository instance
func (f *Factory) GetRawEventRepository() RawEventRepository {
	return f.GetRepositories().RawEvent
}

// GetCanonicalEventRepository returns the canonical event repository instance
func (f *Factory) GetCanonicalEventRepository() CanonicalEventRepository {
	return f.GetRepositories().Canonical
}

// GetLedgerRepository returns the ledger repository instance
func (f *Factory) GetLedgerRepository() LedgerRepository {
	return f.GetRepositories().Ledger
}

// GetReconRepository returns the reconciliation repository instance
func (f *Factory) GetReconRepository() ReconRepository {
	return f.GetRepositories().Recon
}

// GetAnomalyRepository returns the anomaly repository instance
func (f *Factory) GetAnomalyRepository() AnomalyRepository {
	return f.GetRepositories().Anomaly
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
