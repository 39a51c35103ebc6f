package domain

type PlaceCallRequest struct {
	To      string `json:"to" validate:"required,phone"`
	Message string `json:"message" validate:"max=500"`
}

type SendSMSRequest struct {
	To   string `json:"to" validate:"required,phone"`
	Body string `json:"body" validate:"required,max=1600"`
}

type CallResult struct {
	CallSID string `json:"call_sid"`
	Status  string `json:"status"`
	To      string `json:"to,omitempty"`
	From    string `json:"from,omitempty"`
}

type SMSResult struct {
	MessageSID string `json:"message_sid"`
	Status     string `json:"status"`
}

// CallStatusCallback is the form body the telephony provider posts back.
type CallStatusCallback struct {
	CallSID    string
	CallStatus string
	To         string
	From       string
}
