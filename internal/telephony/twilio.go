package telephony

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"careAlert/internal/config"
	"careAlert/internal/domain"
	"careAlert/pkg/e"

	"github.com/go-resty/resty/v2"
)

// Twilio is a TelephonyRelay over the Twilio REST API.
type Twilio struct {
	http       *resty.Client
	cfg        config.TwilioConfig
	logger     *slog.Logger
	gatherURL  string
	callbackTo string
}

type twilioCall struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func NewTwilio(cfg config.TwilioConfig, logger *slog.Logger) *Twilio {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json")

	t := &Twilio{
		http:       client,
		cfg:        cfg,
		logger:     logger,
		callbackTo: cfg.FromNumber,
	}
	if cfg.StatusCallbackURL != "" {
		t.gatherURL = strings.TrimSuffix(cfg.StatusCallbackURL, "/status") + "/gather"
	}
	return t
}

func (t *Twilio) Enabled() bool {
	return t != nil && t.cfg.Enabled()
}

// From is the configured caller id, used in health output.
func (t *Twilio) From() string {
	return t.cfg.FromNumber
}

func (t *Twilio) AccountSID() string {
	return t.cfg.AccountSID
}

func (t *Twilio) PlaceCall(ctx context.Context, to, message string) (domain.CallResult, error) {
	const op = "telephony.Twilio.PlaceCall"
	if !t.Enabled() {
		return domain.CallResult{}, fmt.Errorf("%s: %w", op, e.ErrTelephonyDisabled)
	}

	twiml, err := AlertCallTwiML(message, t.gatherURL)
	if err != nil {
		return domain.CallResult{}, fmt.Errorf("%s: twiml: %w", op, err)
	}

	form := map[string]string{
		"To":    NormalizeNumber(to),
		"From":  t.cfg.FromNumber,
		"Twiml": twiml,
	}
	if t.cfg.StatusCallbackURL != "" {
		form["StatusCallback"] = t.cfg.StatusCallbackURL
		form["StatusCallbackMethod"] = http.MethodPost
	}

	var (
		call    twilioCall
		apiErr  twilioError
		started = time.Now()
	)
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&call).
		SetError(&apiErr).
		Post(fmt.Sprintf("/Accounts/%s/Calls.json", t.cfg.AccountSID))
	if err := t.check(op, resp, err, apiErr); err != nil {
		return domain.CallResult{}, err
	}

	t.logger.Info("call placed",
		slog.String("call_sid", call.SID),
		slog.String("to", call.To),
		slog.String("status", call.Status),
		slog.Duration("latency", time.Since(started)),
	)
	return domain.CallResult{CallSID: call.SID, Status: call.Status, To: call.To, From: call.From}, nil
}

func (t *Twilio) SendSMS(ctx context.Context, to, body string) (domain.SMSResult, error) {
	const op = "telephony.Twilio.SendSMS"
	if !t.Enabled() {
		return domain.SMSResult{}, fmt.Errorf("%s: %w", op, e.ErrTelephonyDisabled)
	}

	var (
		msg    twilioMessage
		apiErr twilioError
	)
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   NormalizeNumber(to),
			"From": t.cfg.FromNumber,
			"Body": body,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", t.cfg.AccountSID))
	if err := t.check(op, resp, err, apiErr); err != nil {
		return domain.SMSResult{}, err
	}

	t.logger.Info("sms sent", slog.String("message_sid", msg.SID), slog.String("status", msg.Status))
	return domain.SMSResult{MessageSID: msg.SID, Status: msg.Status}, nil
}

// GatherReply renders the TwiML answer for a digit pressed during an alert call.
func (t *Twilio) GatherReply(digits string) (string, error) {
	return GatherReplyTwiML(digits, t.callbackTo)
}

func (t *Twilio) check(op string, resp *resty.Response, err error, apiErr twilioError) error {
	if err != nil {
		t.logger.Error("twilio request failed", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		t.logger.Error("twilio rejected request",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode()),
			slog.Int("code", apiErr.Code),
			slog.String("message", apiErr.Message),
		)
		if resp.StatusCode() == http.StatusBadRequest {
			return fmt.Errorf("%s: %s: %w", op, apiErr.Message, e.ErrInvalidInput)
		}
		return fmt.Errorf("%s: twilio status %d: %w", op, resp.StatusCode(), e.ErrInternal)
	}
	return nil
}

// NormalizeNumber prefixes a bare number with '+'.
func NormalizeNumber(n string) string {
	n = strings.TrimSpace(n)
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	return "+" + n
}
