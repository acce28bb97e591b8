package email

import (
	"context"
	"fmt"
	"net/smtp"

	jwemail "github.com/jordan-wright/email"
)

// SMTPDispatcher sends email through an SMTP relay.
type SMTPDispatcher struct {
	host string
	port string
	user string
	pass string
	from string

	send func(e *jwemail.Email, addr string, auth smtp.Auth) error
}

func NewSMTPDispatcher(host, port, user, pass, from string) *SMTPDispatcher {
	if from == "" {
		from = DefaultFrom
	}
	return &SMTPDispatcher{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
		send: func(e *jwemail.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (s *SMTPDispatcher) Dispatch(ctx context.Context, msg Message) Result {
	if s.host == "" || s.port == "" || s.user == "" || s.pass == "" {
		return failed(ErrMissingAPIKey)
	}
	if err := msg.Validate(); err != nil {
		return failed(err)
	}
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	html, err := Render(msg)
	if err != nil {
		return failed(err)
	}

	e := jwemail.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.HTML = []byte(html)
	if msg.IdempotencyKey != "" {
		e.Headers.Set("X-Entity-Ref-ID", msg.IdempotencyKey)
	}

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	if err := s.send(e, addr, auth); err != nil {
		return failed(fmt.Errorf("smtp send: %w", err))
	}
	return sent("")
}
