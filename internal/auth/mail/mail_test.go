package mail

import (
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSMTPDispatcherSendsCode(t *testing.T) {
	var (
		gotTo  []string
		gotMsg []byte
	)
	d := NewSMTPDispatcher("mail.example.com:587", "noreply@example.com", "", "")
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		require.Equal(t, "mail.example.com:587", addr)
		require.Equal(t, "noreply@example.com", from)
		gotTo = to
		gotMsg = msg
		return nil
	}

	require.NoError(t, d.SendCode(context.Background(), "alice@example.com", "AB2CD3"))
	require.Equal(t, []string{"alice@example.com"}, gotTo)
	require.Contains(t, string(gotMsg), "AB2CD3")
	require.Contains(t, string(gotMsg), "Subject: Your login code")
}

func TestSMTPDispatcherWrapsFailure(t *testing.T) {
	d := NewSMTPDispatcher("mail.example.com:587", "noreply@example.com", "", "")
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := d.SendCode(context.Background(), "alice@example.com", "AB2CD3")
	require.ErrorIs(t, err, ErrDispatch)
}

func TestSMTPDispatcherAuthConfigured(t *testing.T) {
	d := NewSMTPDispatcher("mail.example.com:587", "noreply@example.com", "user", "pass")
	require.NotNil(t, d.Auth)

	anon := NewSMTPDispatcher("mail.example.com:587", "noreply@example.com", "", "")
	require.Nil(t, anon.Auth)
}

func TestLogDispatcherNeverFails(t *testing.T) {
	d := NewLogDispatcher(slog.Default(), "sms")
	require.NoError(t, d.SendCode(context.Background(), "+15550100", "AB2CD3"))
}
