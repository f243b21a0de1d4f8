package directory

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a doctor or specialization does not exist.
var ErrNotFound = errors.New("directory: not found")

// Doctor is a read-only doctor record owned by the wider platform.
type Doctor struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Specialization  string `json:"specialization"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ExperienceYears int    `json:"experience_years,omitempty"`
	Bio             string `json:"bio,omitempty"`
}

// Specialization is a read-only specialization record.
type Specialization struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Repository looks up doctors and specializations. Implementations never write.
type Repository interface {
	FindDoctorByName(ctx context.Context, name string) (*Doctor, error)
	DoctorsBySpecialization(ctx context.Context, specialization string, limit int) ([]Doctor, error)
	CountDoctorsBySpecialization(ctx context.Context, specialization string) (int, error)
	SearchDoctors(ctx context.Context, partial string, limit int) ([]Doctor, error)
}
