package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Lat   float64 `validate:"lat"`
	Lng   float64 `validate:"lng"`
	Phone string  `validate:"omitempty,phone"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want string
	}{
		{name: "valid", in: sample{Lat: 1.3, Lng: 103.8, Phone: "+6591234567"}},
		{name: "phone without plus", in: sample{Phone: "6591234567"}},
		{name: "lat out of range", in: sample{Lat: 91}, want: "lat: lat"},
		{name: "lng out of range", in: sample{Lng: -181}, want: "lng: lng"},
		{name: "short phone", in: sample{Phone: "+123"}, want: "phone: phone"},
		{name: "letters in phone", in: sample{Phone: "+65abc45678"}, want: "phone: phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, Describe(err))
		})
	}
}
