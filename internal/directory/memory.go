package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryRepository serves a fixed set of doctors. Used when no database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors []Doctor
}

// NewInMemoryRepository creates a repository holding doctors.
func NewInMemoryRepository(doctors ...Doctor) *InMemoryRepository {
	r := &InMemoryRepository{}
	for _, d := range doctors {
		r.Add(d)
	}
	return r
}

// Add stores a doctor record, keeping the set ordered by name.
func (r *InMemoryRepository) Add(d Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Name = NormalizeName(d.Name)
	r.doctors = append(r.doctors, d)
	sort.SliceStable(r.doctors, func(i, j int) bool {
		return r.doctors[i].Name < r.doctors[j].Name
	})
}

func (r *InMemoryRepository) FindDoctorByName(ctx context.Context, name string) (*Doctor, error) {
	name = NormalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.doctors {
		if name != "" && strings.EqualFold(d.Name, name) {
			found := d
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) DoctorsBySpecialization(ctx context.Context, specialization string, limit int) ([]Doctor, error) {
	spec := strings.TrimSpace(specialization)
	return r.filter(limit, func(d Doctor) bool {
		return strings.EqualFold(d.Specialization, spec)
	}), nil
}

func (r *InMemoryRepository) CountDoctorsBySpecialization(ctx context.Context, specialization string) (int, error) {
	docs, _ := r.DoctorsBySpecialization(ctx, specialization, maxListLimit)
	return len(docs), nil
}

func (r *InMemoryRepository) SearchDoctors(ctx context.Context, partial string, limit int) ([]Doctor, error) {
	needle := strings.ToLower(NormalizeName(partial))
	return r.filter(limit, func(d Doctor) bool {
		return strings.Contains(strings.ToLower(d.Name), needle)
	}), nil
}

func (r *InMemoryRepository) filter(limit int, keep func(Doctor) bool) []Doctor {
	limit = clampLimit(limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Doctor{}
	for _, d := range r.doctors {
		if len(out) == limit {
			break
		}
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
