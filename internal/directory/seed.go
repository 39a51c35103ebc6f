package directory

import (
	"context"
	"fmt"
	"os"

	"careAlert/internal/domain"

	"gopkg.in/yaml.v2"
)

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	UserType         string   `yaml:"user_type"`
	Phone            string   `yaml:"phone"`
	Lat              *float64 `yaml:"lat"`
	Lng              *float64 `yaml:"lng"`
	AssignedPatients []string `yaml:"assigned_patients"`
}

// Upserter is a directory backend that can be seeded.
type Upserter interface {
	Upsert(ctx context.Context, u domain.User) error
}

// LoadSeed reads a YAML list of users.
func LoadSeed(path string) ([]domain.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]domain.User, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("directory seed: %w", err)
	}

	users := make([]domain.User, 0, len(f.Users))
	seen := make(map[string]struct{}, len(f.Users))
	for i, su := range f.Users {
		if su.ID == "" {
			return nil, fmt.Errorf("directory seed: user #%d has no id", i+1)
		}
		if _, dup := seen[su.ID]; dup {
			return nil, fmt.Errorf("directory seed: duplicate user %q", su.ID)
		}
		seen[su.ID] = struct{}{}

		t := domain.UserType(su.UserType)
		switch t {
		case domain.UserPatient, domain.UserCaregiver, domain.UserVolunteer:
		default:
			return nil, fmt.Errorf("directory seed: user %q has unknown type %q", su.ID, su.UserType)
		}

		u := domain.User{
			ID:               su.ID,
			Name:             su.Name,
			UserType:         t,
			Phone:            su.Phone,
			AssignedPatients: su.AssignedPatients,
		}
		if su.Lat != nil && su.Lng != nil {
			u.Location = &domain.Coord{Lat: *su.Lat, Lng: *su.Lng}
		}
		users = append(users, u)
	}
	return users, nil
}

// Seed writes users into dst one by one.
func Seed(ctx context.Context, dst Upserter, users []domain.User) error {
	for _, u := range users {
		if err := dst.Upsert(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}
