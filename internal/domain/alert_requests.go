package domain

type CreateAlertRequest struct {
	Lat      *float64 `json:"lat" validate:"omitempty,lat"`
	Lng      *float64 `json:"lng" validate:"omitempty,lng"`
	Severity Severity `json:"severity" validate:"omitempty,oneof=emergency urgent routine"`
}

// Location returns the sentinel when the patient could not share a position.
func (r CreateAlertRequest) Location() Coord {
	if r.Lat == nil || r.Lng == nil {
		return Coord{}
	}
	return Coord{Lat: *r.Lat, Lng: *r.Lng}
}

type RespondRequest struct {
	Lat *float64 `json:"lat" validate:"omitempty,lat"`
	Lng *float64 `json:"lng" validate:"omitempty,lng"`
}

func (r RespondRequest) Location() *Coord {
	if r.Lat == nil || r.Lng == nil {
		return nil
	}
	return &Coord{Lat: *r.Lat, Lng: *r.Lng}
}

type UpdateResponderRequest struct {
	Status ResponderStatus `json:"status" validate:"required,oneof=acknowledged en_route arrived"`
}

type RespondResponse struct {
	Alert             *Alert `json:"alert"`
	AlreadyResponding bool   `json:"already_responding"`
}

type ListAlertsResponse struct {
	Alerts []Alert `json:"alerts"`
	Total  int     `json:"total"`
}
