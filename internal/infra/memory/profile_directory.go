package memory

import (
	"context"
	"sync"

	"quiz-ledger-service/internal/domain"
	"quiz-ledger-service/internal/ingest"
)

// ProfileDirectory resolves student names from profiles held in memory.
type ProfileDirectory struct {
	mu       sync.RWMutex
	profiles map[string]ingest.Profile
}

func NewProfileDirectory(profiles map[string]ingest.Profile) *ProfileDirectory {
	copied := make(map[string]ingest.Profile, len(profiles))
	for id, p := range profiles {
		copied[id] = p
	}
	return &ProfileDirectory{profiles: copied}
}

func (d *ProfileDirectory) Put(studentID string, p ingest.Profile) {
	d.mu.Lock()
	d.profiles[studentID] = p
	d.mu.Unlock()
}

func (d *ProfileDirectory) Resolve(_ context.Context, studentID string) (domain.StudentName, error) {
	d.mu.RLock()
	p, ok := d.profiles[studentID]
	d.mu.RUnlock()
	if !ok {
		return domain.StudentName{}, domain.ErrProfileNotFound
	}
	name, ok := ingest.StudentName(p)
	if !ok {
		return domain.StudentName{}, domain.ErrProfileNotFound
	}
	return name, nil
}
