package system

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"log/slog"
)

type TelephonyStatus interface {
	Enabled() bool
	From() string
	AccountSID() string
}

type SubscriptionCounter interface {
	Counts() (caregivers, alerts int)
}

// Check is a named dependency check, e.g. a database ping.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handler struct {
	logger    *slog.Logger
	telephony TelephonyStatus
	subs      SubscriptionCounter
	checks    []Check
	now       func() time.Time
}

func NewHandler(logger *slog.Logger, telephony TelephonyStatus, subs SubscriptionCounter, checks ...Check) *Handler {
	return &Handler{
		logger:    logger,
		telephony: telephony,
		subs:      subs,
		checks:    checks,
		now:       time.Now,
	}
}

type healthResponse struct {
	Status        string            `json:"status"`
	Timestamp     time.Time         `json:"timestamp"`
	Checks        map[string]string `json:"checks,omitempty"`
	Twilio        twilioHealth      `json:"twilio"`
	Subscriptions map[string]int    `json:"subscriptions,omitempty"`
}

type twilioHealth struct {
	Configured  bool   `json:"configured"`
	AccountSID  string `json:"accountSid"`
	PhoneNumber string `json:"phoneNumber"`
}

// SystemHealth reports liveness plus dependency state. Any failed check
// turns the response into a 503.
func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC(),
		Twilio:    h.twilio(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	code := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", c.Name), slog.Any("error", err))
			resp.Checks[c.Name] = "down"
			resp.Status = "DEGRADED"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "up"
	}

	if h.subs != nil {
		cg, al := h.subs.Counts()
		resp.Subscriptions = map[string]int{"caregiver": cg, "alert": al}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) twilio() twilioHealth {
	out := twilioHealth{PhoneNumber: "Not configured"}
	if h.telephony == nil {
		return out
	}
	out.Configured = h.telephony.Enabled()
	if sid := h.telephony.AccountSID(); sid != "" {
		if len(sid) > 10 {
			sid = sid[:10]
		}
		out.AccountSID = sid + "..."
	}
	if from := h.telephony.From(); from != "" {
		out.PhoneNumber = from
	}
	return out
}
