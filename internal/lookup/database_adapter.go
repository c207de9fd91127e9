package lookup

import (
	"github.com/mmlink/dvdecode/internal/database"
)

// DatabaseLookup adapts the SQLite identity repository to the Resolver
// interface, with a small positive/negative cache in front of it so the
// decode path does not hit the database once per frame.
type DatabaseLookup struct {
	repo  *database.RadioUserRepository
	cache map[uint32]string // "" caches a confirmed miss
	max   int
}

// NewDatabaseLookup wraps a repository. cacheSize bounds the in-memory
// cache; zero selects a default.
func NewDatabaseLookup(repo *database.RadioUserRepository, cacheSize int) *DatabaseLookup {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	return &DatabaseLookup{
		repo:  repo,
		cache: make(map[uint32]string, cacheSize),
		max:   cacheSize,
	}
}

// Callsign implements Resolver.
func (d *DatabaseLookup) Callsign(id uint32) (string, bool) {
	if call, ok := d.cache[id]; ok {
		return call, call != ""
	}

	user, err := d.repo.GetByRadioID(id)
	if err != nil {
		if database.NotFound(err) {
			d.store(id, "")
		}
		return "", false
	}
	d.store(id, user.Callsign)
	return user.Callsign, true
}

func (d *DatabaseLookup) store(id uint32, call string) {
	if len(d.cache) >= d.max {
		// Wholesale eviction once the bound is reached.
		d.cache = make(map[uint32]string, d.max)
	}
	d.cache[id] = call
}
