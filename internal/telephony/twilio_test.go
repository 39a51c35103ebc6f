package telephony

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careAlert/internal/config"
	"careAlert/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestTwilio(t *testing.T, h http.HandlerFunc) *Twilio {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTwilio(config.TwilioConfig{
		AccountSID:        "AC123",
		AuthToken:         "secret",
		FromNumber:        "+15550000000",
		BaseURL:           srv.URL,
		StatusCallbackURL: "https://carealert.example/api/v1/telephony/status",
	}, newTestLogger())
}

func TestNormalizeNumber(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "+15551234567", NormalizeNumber("15551234567"))
	assert.Equal(t, "+15551234567", NormalizeNumber(" +15551234567 "))
	assert.Equal(t, "", NormalizeNumber(""))
}

func TestTwilio_PlaceCall(t *testing.T) {
	t.Parallel()

	var form url.Values
	tw := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Calls.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA1","status":"queued","to":"+15551234567","from":"+15550000000"}`))
	})

	res, err := tw.PlaceCall(context.Background(), "15551234567", "Pat needs help")
	require.NoError(t, err)
	assert.Equal(t, "CA1", res.CallSID)
	assert.Equal(t, "queued", res.Status)

	assert.Equal(t, "+15551234567", form.Get("To"))
	assert.Equal(t, "+15550000000", form.Get("From"))
	assert.Contains(t, form.Get("Twiml"), `<Say voice="alice" language="en-US">Pat needs help</Say>`)
	assert.Contains(t, form.Get("Twiml"), `action="https://carealert.example/api/v1/telephony/gather"`)
	assert.Equal(t, "https://carealert.example/api/v1/telephony/status", form.Get("StatusCallback"))
}

func TestTwilio_SendSMS(t *testing.T) {
	t.Parallel()

	tw := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "Alert!", r.PostForm.Get("Body"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	res, err := tw.SendSMS(context.Background(), "+15551234567", "Alert!")
	require.NoError(t, err)
	assert.Equal(t, "SM1", res.MessageSID)
}

func TestTwilio_ProviderRejects(t *testing.T) {
	t.Parallel()

	tw := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := tw.SendSMS(context.Background(), "123", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, e.ErrInvalidInput))
	assert.True(t, strings.Contains(err.Error(), "Invalid 'To' Phone Number"))
}

func TestTwilio_Disabled(t *testing.T) {
	t.Parallel()

	tw := NewTwilio(config.TwilioConfig{BaseURL: "http://unused"}, newTestLogger())
	assert.False(t, tw.Enabled())

	_, err := tw.PlaceCall(context.Background(), "+15551234567", "")
	assert.True(t, errors.Is(err, e.ErrTelephonyDisabled))
	_, err = tw.SendSMS(context.Background(), "+15551234567", "x")
	assert.True(t, errors.Is(err, e.ErrTelephonyDisabled))
}

func TestTwiML(t *testing.T) {
	t.Parallel()

	call, err := AlertCallTwiML("", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(call, "<?xml"))
	assert.Contains(t, call, defaultCallMessage)
	assert.NotContains(t, call, "<Gather")

	escaped, err := AlertCallTwiML("a < b & c", "")
	require.NoError(t, err)
	assert.Contains(t, escaped, "a &lt; b &amp; c")

	reply, err := GatherReplyTwiML("2", "+15550000000")
	require.NoError(t, err)
	assert.Contains(t, reply, "<Dial>+15550000000</Dial>")

	reply, err = GatherReplyTwiML("9", "")
	require.NoError(t, err)
	assert.Contains(t, reply, "Invalid input")
}
