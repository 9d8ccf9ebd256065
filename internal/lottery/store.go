package lottery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/models"
)

// Store owns every active lottery record. All mutations go through the
// checkout/mutate/commit contract below; callers never hold a live record.
//
// Locking: each record carries its own mutex so purchases against different
// lotteries run fully in parallel, while two purchases against the same
// lottery are serialized. The store-level mutex only guards the map and the
// committed record values. saveMu serializes snapshot writes AND orders them
// against commits: every mutation commits in memory while holding saveMu and
// builds its snapshot before releasing it, so a written snapshot always
// contains every previously confirmed mutation.
type Store struct {
	path string
	log  *logger.Logger

	mu      sync.RWMutex
	records map[string]*record

	saveMu sync.Mutex
}

type record struct {
	mu  sync.Mutex
	lot models.Lottery
}

func NewStore(path string, log *logger.Logger) *Store {
	return &Store{
		path:    path,
		log:     log,
		records: make(map[string]*record),
	}
}

// Load reads the persisted snapshot. A missing or malformed file yields an
// empty store: the service always boots, even with no prior state.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("STORE", fmt.Sprintf("No snapshot at %s, starting empty", s.path))
		} else {
			s.log.Warn("STORE", fmt.Sprintf("Failed to read snapshot %s, starting empty: %v", s.path, err))
		}
		return
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn("STORE", fmt.Sprintf("Malformed snapshot %s, starting empty: %v", s.path, err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, lot := range snap.Lotteries {
		lot.State = models.StateOpen
		s.records[id] = &record{lot: lot}
	}
	s.log.Info("STORE", fmt.Sprintf("Loaded %d active lotteries from snapshot", len(s.records)))
}

// Create inserts a new lottery and persists synchronously before returning
// success. A failed write rolls the insert back.
func (s *Store) Create(lot models.Lottery) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if _, exists := s.records[lot.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("lottery %s already exists", lot.ID)
	}
	s.records[lot.ID] = &record{lot: lot.Clone()}
	s.mu.Unlock()

	if err := s.writeSnapshot(); err != nil {
		s.mu.Lock()
		delete(s.records, lot.ID)
		s.mu.Unlock()
		return &PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// Get returns a copy of the lottery, or ErrNotFound.
func (s *Store) Get(id string) (models.Lottery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return models.Lottery{}, ErrNotFound
	}
	return rec.lot.Clone(), nil
}

// Mutate applies fn to the record under that lottery's exclusivity guarantee,
// commits the result and persists it before returning. fn works on a private
// copy: if it errors the committed record is untouched; if the write fails
// the commit is rolled back under the still-held record lock. The updated
// record is returned on success.
func (s *Store) Mutate(id string, fn func(*models.Lottery) error) (models.Lottery, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return models.Lottery{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	// The record may have been removed by finalization while we waited.
	s.mu.RLock()
	_, present := s.records[id]
	updated := rec.lot.Clone()
	s.mu.RUnlock()
	if !present {
		return models.Lottery{}, ErrNotFound
	}

	if err := fn(&updated); err != nil {
		return models.Lottery{}, err
	}

	// Commit under saveMu, then build the snapshot: a concurrent writer on
	// another lottery cannot capture this record's pre-commit state and
	// overwrite the file with it.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	prev := rec.lot
	rec.lot = updated
	s.mu.Unlock()

	if err := s.writeSnapshot(); err != nil {
		s.mu.Lock()
		rec.lot = prev
		s.mu.Unlock()
		return models.Lottery{}, &PersistenceError{Op: "mutate", Err: err}
	}
	return updated.Clone(), nil
}

// Remove atomically takes the lottery out of the active set and persists the
// removal. Used exactly once per lottery, by finalization. A failed write
// reinserts the record so the durable state stays consistent with memory.
func (s *Store) Remove(id string) (models.Lottery, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return models.Lottery{}, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if _, present := s.records[id]; !present {
		s.mu.Unlock()
		return models.Lottery{}, ErrNotFound
	}
	delete(s.records, id)
	lot := rec.lot
	s.mu.Unlock()

	if err := s.writeSnapshot(); err != nil {
		s.mu.Lock()
		s.records[id] = rec
		s.mu.Unlock()
		return models.Lottery{}, &PersistenceError{Op: "remove", Err: err}
	}
	return lot.Clone(), nil
}

// ListActive returns copies of every active lottery, ordered by end time.
// Only committed records are visible; nothing mid-mutation leaks out.
func (s *Store) ListActive() []models.Lottery {
	s.mu.RLock()
	out := make([]models.Lottery, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.lot.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out
}

// Count reports the number of active lotteries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Save writes the current snapshot. Used by the periodic safety-net saver.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.writeSnapshot(); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// writeSnapshot serializes the committed active set and replaces the snapshot
// file. The caller must hold saveMu: the build must not interleave with
// another writer's commit, or a stale snapshot could overwrite a newer one.
func (s *Store) writeSnapshot() error {
	snap := models.NewSnapshot()
	s.mu.RLock()
	for id, rec := range s.records {
		snap.Lotteries[id] = rec.lot.Clone()
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	// Write-new-then-replace: a crash mid-write never corrupts the previous
	// durable snapshot.
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
