// Package directory is the minimal student registry consumed by grade-event
// ingestion (auto-provisioning) and the transfer workflow (subject-known check).
package directory

import (
	"context"
	"sync"
	"time"

	id "accredo/pkg/domain"
)

// Subject is a registered student.
type Subject struct {
	ID           id.SubjectID
	RegisteredAt time.Time
}

// Directory is the subject registry contract.
type Directory interface {
	// EnsureSubject registers the subject if missing and reports whether it
	// was created by this call.
	EnsureSubject(ctx context.Context, subjectID id.SubjectID) (created bool, err error)
	Exists(ctx context.Context, subjectID id.SubjectID) (bool, error)
}

// InMemoryDirectory keeps subjects in process memory.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]Subject
}

// NewInMemoryDirectory constructs an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{subjects: make(map[id.SubjectID]Subject)}
}

// EnsureSubject registers the subject if missing. Safe under concurrent
// redelivery of the same grade event: exactly one caller observes created=true.
func (d *InMemoryDirectory) EnsureSubject(_ context.Context, subjectID id.SubjectID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subjects[subjectID]; ok {
		return false, nil
	}
	d.subjects[subjectID] = Subject{ID: subjectID, RegisteredAt: time.Now().UTC()}
	return true, nil
}

// Exists reports whether the subject is registered.
func (d *InMemoryDirectory) Exists(_ context.Context, subjectID id.SubjectID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.subjects[subjectID]
	return ok, nil
}
