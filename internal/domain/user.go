package domain

type UserType string

const (
	UserPatient   UserType = "patient"
	UserCaregiver UserType = "caregiver"
	UserVolunteer UserType = "volunteer"
)

// User is the Directory view of a person. Location is nil when none is on file.
type User struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	UserType         UserType `json:"user_type"`
	Phone            string   `json:"phone,omitempty"`
	Location         *Coord   `json:"location,omitempty"`
	AssignedPatients []string `json:"assigned_patients,omitempty"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID   string
	UserType UserType
	Name     string
}

func (p Principal) IsPatient() bool   { return p.UserType == UserPatient }
func (p Principal) IsCaregiver() bool { return p.UserType == UserCaregiver }
