package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPDispatcher sends codes over plain SMTP with optional AUTH. TLS is the
// server's concern (STARTTLS is negotiated by net/smtp when offered).
type SMTPDispatcher struct {
	Addr string // host:port
	From string
	Auth smtp.Auth // nil for unauthenticated relays

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDispatcher(addr, from, username, password string) *SMTPDispatcher {
	d := &SMTPDispatcher{
		Addr: addr,
		From: from,
		send: smtp.SendMail,
	}
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		d.Auth = smtp.PlainAuth("", username, password, host)
	}
	return d
}

func (d *SMTPDispatcher) SendCode(ctx context.Context, to, code string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your login code\r\n\r\nYour login code is: %s\r\nIt expires in 5 minutes.\r\n",
		d.From, to, code)

	if err := d.send(d.Addr, d.Auth, d.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}
