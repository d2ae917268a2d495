// Package seeder populates in-memory backends with demo data for local
// development, so the node answers issuance and transfer requests out of the
// box.
package seeder

import (
	"context"
	"fmt"
	"log/slog"

	"accredo/internal/referencedata"
	id "accredo/pkg/domain"
)

// CourseCatalog accepts seeded course records.
type CourseCatalog interface {
	Put(course referencedata.Course)
}

// SubjectDirectory accepts seeded subjects.
type SubjectDirectory interface {
	EnsureSubject(ctx context.Context, subjectID id.SubjectID) (bool, error)
}

// Seeder loads demo courses and students into the local backends.
type Seeder struct {
	catalog   CourseCatalog
	directory SubjectDirectory
	logger    *slog.Logger
}

// New creates a seeder over the given backends.
func New(catalog CourseCatalog, directory SubjectDirectory, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{catalog: catalog, directory: directory, logger: logger}
}

var demoCourses = []referencedata.Course{
	{ID: "CS101", Name: "Introduction to Programming", Credits: 3, Active: true},
	{ID: "CS301", Name: "Algorithms and Data Structures", Credits: 4, Active: true},
	{ID: "MATH201", Name: "Linear Algebra", Credits: 3, Active: true},
	{ID: "PHYS110", Name: "Mechanics", Credits: 4, Active: true},
	{ID: "HIST150", Name: "World History", Credits: 2, Active: false},
}

var demoSubjects = []id.SubjectID{"s1001", "s1002", "s2001"}

// SeedAll loads all demo records.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data")

	for _, course := range demoCourses {
		s.catalog.Put(course)
	}
	for _, subjectID := range demoSubjects {
		if _, err := s.directory.EnsureSubject(ctx, subjectID); err != nil {
			return fmt.Errorf("seed subject %s: %w", subjectID, err)
		}
	}

	s.logger.Info("demo data seeded",
		"courses", len(demoCourses), "subjects", len(demoSubjects))
	return nil
}
