package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

// EmailChannel sends multipart/alternative mail (text + HTML) over SMTP.
type EmailChannel struct {
	cfg  SMTPConfig
	from *mail.Address

	// send is the SMTP transaction; replaced in tests.
	send func(ctx context.Context, addr, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewEmailChannel(cfg SMTPConfig) (*EmailChannel, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp host is empty")
	}
	if strings.TrimSpace(cfg.Sender) == "" {
		return nil, errors.New("sender address is empty")
	}
	from, err := mail.ParseAddress(cfg.Sender)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", cfg.Sender, err)
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	ch := &EmailChannel{cfg: cfg, from: from, now: time.Now}
	ch.send = ch.smtpSend
	return ch, nil
}

func (c *EmailChannel) Name() string { return ChannelEmail }

// Send returns the generated Message-ID as the delivery reference.
func (c *EmailChannel) Send(ctx context.Context, to string, msg Message) (string, error) {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid email address %q", to)
	}
	msgID := fmt.Sprintf("<%s@%s>", uuid.NewString(), c.domain())
	raw, err := c.build(rcpt.String(), msgID, msg)
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	if err := c.send(ctx, addr, c.from.Address, []string{rcpt.Address}, raw); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msgID, nil
}

func (c *EmailChannel) domain() string {
	if _, d, ok := strings.Cut(c.from.Address, "@"); ok && d != "" {
		return d
	}
	return c.cfg.Host
}

func (c *EmailChannel) build(to, msgID string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		ctype, content string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	hdr := func(k, v string) { fmt.Fprintf(&out, "%s: %s\r\n", k, v) }
	hdr("From", c.from.String())
	hdr("To", to)
	hdr("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	hdr("Date", c.now().UTC().Format(time.RFC1123Z))
	hdr("Message-ID", msgID)
	hdr("MIME-Version", "1.0")
	hdr("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// smtpSend runs one SMTP transaction bounded by ctx.
// STARTTLS and AUTH are used when the server offers them.
func (c *EmailChannel) smtpSend(ctx context.Context, addr, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	cl, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer cl.Close()

	if ok, _ := cl.Extension("STARTTLS"); ok {
		if err := cl.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if c.cfg.Username != "" {
		if ok, _ := cl.Extension("AUTH"); ok {
			if err := cl.Auth(smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}
	if err := cl.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := cl.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := cl.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return cl.Quit()
}
