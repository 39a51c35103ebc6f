package telephony

import (
	"context"
	"log/slog"
	"net/http"

	"careAlert/internal/domain"
	"careAlert/internal/middleware"

	chimw "github.com/go-chi/chi/v5/middleware"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Relay interface {
	PlaceCall(ctx context.Context, to, message string) (domain.CallResult, error)
	SendSMS(ctx context.Context, to, body string) (domain.SMSResult, error)
	GatherReply(digits string) (string, error)
}

type Handler struct {
	logger *slog.Logger
	Relay  Relay
}

func NewHandler(logger *slog.Logger, relay Relay) *Handler {
	return &Handler{logger: logger, Relay: relay}
}

func (h *Handler) MakeCall(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	req, err := middleware.BindJSON[domain.PlaceCallRequest](r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.Relay.PlaceCall(r.Context(), req.To, req.Message)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("call placed", slog.String("call_sid", res.CallSID), slog.String("status", res.Status))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"callSid": res.CallSID,
		"status":  res.Status,
		"to":      res.To,
		"from":    res.From,
	})
}

func (h *Handler) SendSMS(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	req, err := middleware.BindJSON[domain.SendSMSRequest](r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	res, err := h.Relay.SendSMS(r.Context(), req.To, req.Body)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	l.Info("sms sent", slog.String("message_sid", res.MessageSID))
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"messageSid": res.MessageSID,
		"status":     res.Status,
	})
}

// CallStatus receives Twilio's form-encoded status callback. It is only logged.
func (h *Handler) CallStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	cb := domain.CallStatusCallback{
		CallSID:    r.PostForm.Get("CallSid"),
		CallStatus: r.PostForm.Get("CallStatus"),
		To:         r.PostForm.Get("To"),
		From:       r.PostForm.Get("From"),
	}
	h.log(r).Info("call status update",
		slog.String("call_sid", cb.CallSID),
		slog.String("status", cb.CallStatus),
		slog.String("to", cb.To),
		slog.String("from", cb.From),
	)
	w.WriteHeader(http.StatusOK)
}

// Gather answers the digit pressed during an alert call with TwiML.
func (h *Handler) Gather(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	digits := r.PostForm.Get("Digits")
	h.log(r).Info("call input received", slog.String("digits", digits), slog.String("call_sid", r.PostForm.Get("CallSid")))

	twiml, err := h.Relay.GatherReply(digits)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twiml))
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return h.logger
	}
	return h.logger.With(slog.String("request_id", reqID))
}
