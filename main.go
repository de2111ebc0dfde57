package PagerDB

import (
	"github.com/nickyhof/PagerDB/core"
	"github.com/nickyhof/PagerDB/db"
	"github.com/nickyhof/PagerDB/ps"
)

// Instance holds what engines share: the snapshot store, the catalog cache
// and remote settings.
type Instance struct {
	Persistence *ps.Persistence
	Cache       *db.CatalogCache
	S3          *db.S3Config
	RemoteAuth  *ps.RemoteAuth
}

// Open returns an instance over persistence, which may be nil.
func Open(persistence *ps.Persistence) *Instance {
	return &Instance{
		Persistence: persistence,
		Cache:       db.NewCatalogCache(db.DefaultCacheSize),
	}
}

// Engine returns a new engine for one session.
func (instance *Instance) Engine(identity core.Identity) *db.Engine {
	engine := db.NewEngine(instance.Persistence, identity)
	engine.Cache = instance.Cache
	engine.S3 = instance.S3
	engine.RemoteAuth = instance.RemoteAuth
	return engine
}
