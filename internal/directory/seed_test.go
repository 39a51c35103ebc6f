package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/domain"
)

const seedYAML = `
users:
  - id: p1
    name: Pat
    user_type: patient
  - id: cA
    name: Ann
    user_type: caregiver
    phone: "+6591234567"
    lat: 1.3
    lng: 103.8
    assigned_patients: [p1]
`

func TestParseSeed(t *testing.T) {
	users, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, domain.User{ID: "p1", Name: "Pat", UserType: domain.UserPatient}, users[0])
	assert.Equal(t, domain.User{
		ID:               "cA",
		Name:             "Ann",
		UserType:         domain.UserCaregiver,
		Phone:            "+6591234567",
		Location:         &domain.Coord{Lat: 1.3, Lng: 103.8},
		AssignedPatients: []string{"p1"},
	}, users[1])
}

func TestParseSeed_Rejects(t *testing.T) {
	tests := map[string]string{
		"missing id":   "users:\n  - name: x\n    user_type: patient\n",
		"duplicate id": "users:\n  - {id: a, user_type: patient}\n  - {id: a, user_type: patient}\n",
		"unknown type": "users:\n  - {id: a, user_type: admin}\n",
		"not yaml":     "users: [",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSeed([]byte(in))
			assert.Error(t, err)
		})
	}
}

type recorder struct{ got []string }

func (r *recorder) Upsert(_ context.Context, u domain.User) error {
	r.got = append(r.got, u.ID)
	return nil
}

func TestSeed(t *testing.T) {
	users, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)

	var r recorder
	require.NoError(t, Seed(context.Background(), &r, users))
	assert.Equal(t, []string{"p1", "cA"}, r.got)
}
