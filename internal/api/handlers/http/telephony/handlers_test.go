package telephony_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"

	"careAlert/internal/api/handlers/http/telephony"
	mock_telephony "careAlert/internal/api/handlers/http/telephony/mocks"
	"careAlert/internal/domain"
	"careAlert/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMakeCall_OK(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	relay := mock_telephony.NewMockRelay(ctrl)
	h := telephony.NewHandler(newTestLogger(), relay)

	relay.EXPECT().PlaceCall(gomock.Any(), "+6591234567", "help").
		Return(domain.CallResult{CallSID: "CA1", Status: "queued"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telephony/call", strings.NewReader(`{"to":"+6591234567","message":"help"}`))
	rr := httptest.NewRecorder()
	h.MakeCall(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d, body=%s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"callSid":"CA1"`) {
		t.Fatalf("missing call sid: %s", rr.Body.String())
	}
}

func TestMakeCall_BadNumber_400(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := telephony.NewHandler(newTestLogger(), mock_telephony.NewMockRelay(ctrl))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/telephony/call", strings.NewReader(`{"to":"12"}`))
	rr := httptest.NewRecorder()
	h.MakeCall(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestSendSMS_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("sms: %w", e.ErrTelephonyDisabled), http.StatusServiceUnavailable},
		{fmt.Errorf("sms: %w", e.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("sms: %w", e.ErrInternal), http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			relay := mock_telephony.NewMockRelay(ctrl)
			h := telephony.NewHandler(newTestLogger(), relay)
			relay.EXPECT().SendSMS(gomock.Any(), "6591234567", "on my way").Return(domain.SMSResult{}, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/telephony/sms", strings.NewReader(`{"to":"6591234567","body":"on my way"}`))
			rr := httptest.NewRecorder()
			h.SendSMS(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestCallStatus_OK(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := telephony.NewHandler(newTestLogger(), mock_telephony.NewMockRelay(ctrl))

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telephony/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.CallStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, rr.Code)
	}
}

func TestGather_ReturnsTwiML(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	relay := mock_telephony.NewMockRelay(ctrl)
	h := telephony.NewHandler(newTestLogger(), relay)
	relay.EXPECT().GatherReply("1").Return(`<?xml version="1.0" encoding="UTF-8"?><Response/>`, nil)

	form := url.Values{"Digits": {"1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telephony/gather", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.Gather(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("unexpected content type %q", ct)
	}
}
