package cache

import (
	"log"
	"time"

	"stock-analyzer/internal/store"
)

// Sqlite keeps cached payloads in the sqlite store so a restart inside the
// TTL window still skips the network. Store trouble degrades to a miss.
type Sqlite struct {
	store *store.Store
}

func NewSqlite(st *store.Store) *Sqlite {
	return &Sqlite{store: st}
}

func (s *Sqlite) Get(key string) ([]byte, bool) {
	payload, ok, err := s.store.GetPayload(key)
	if err != nil {
		log.Printf("cache get error: %v", err)
		return nil, false
	}
	return payload, ok
}

func (s *Sqlite) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.store.PutPayload(key, value, time.Now().Add(ttl)); err != nil {
		log.Printf("cache set error: %v", err)
	}
}

func (s *Sqlite) Prune() {
	if _, err := s.store.PruneExpired(); err != nil {
		log.Printf("cache prune error: %v", err)
	}
}
