package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"

	"github.com/lukman83/pricewatch/internal/models"
	"github.com/lukman83/pricewatch/internal/price"
)

// DefaultEmailTimeout bounds one SMTP delivery.
const DefaultEmailTimeout = 15 * time.Second

// Email sends alerts over SMTP. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type Email struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration

	send func(ctx context.Context, msg *mail.Msg) error
}

func NewEmail(host string, port int, username, password, to string) *Email {
	e := &Email{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     username,
	}
	if to == "" {
		to = username
	}
	for _, addr := range strings.Split(to, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			e.To = append(e.To, addr)
		}
	}
	return e
}

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>ALERTA DE PREÇO!</h1>
    <p>O produto que você está monitorando atingiu seu preço-alvo.</p>
    <h2>{{.Product}}</h2>
    <p style="font-size: 20px; color: #666;">{{.Store}}</p>
    <p style="font-size: 40px; font-weight: bold; color: #22c55e;">{{.Price}}</p>
    <p style="background: #dcfce7; padding: 15px;">
      <strong>Economia: {{.Savings}} ({{.Percent}}% abaixo do seu alvo)</strong><br>
      Seu preço-alvo: {{.Target}}
    </p>
    <p><a href="{{.URL}}">VER PRODUTO</a></p>
    <p style="color: #666; font-size: 14px;">Preço capturado em: {{.CapturedAt}}</p>
  </div>
</body>
</html>
`))

type alertView struct {
	Product    string
	Store      string
	Price      string
	Savings    string
	Percent    string
	Target     string
	URL        string
	CapturedAt string
}

func (e *Email) Notify(ctx context.Context, r models.Reading, target decimal.Decimal) error {
	if !Eligible(r, target) {
		return nil
	}
	savings, pct := Savings(*r.Price, target)

	var body bytes.Buffer
	err := alertTemplate.Execute(&body, alertView{
		Product:    r.ProductName,
		Store:      siteLabel(r),
		Price:      price.FormatFloatBRL(*r.Price),
		Savings:    price.FormatBRL(savings),
		Percent:    pct.StringFixed(1),
		Target:     price.FormatBRL(target),
		URL:        r.URL,
		CapturedAt: r.Timestamp.Format("02/01/2006 15:04:05"),
	})
	if err != nil {
		return fmt.Errorf("email: render: %w", err)
	}

	if err := e.deliver(ctx, "ALERTA DE PREÇO: "+r.ProductName, body.Bytes()); err != nil {
		return err
	}
	log.Printf("[email] alert sent to %s: %s at %s", strings.Join(e.To, ", "), r.ProductName, price.FormatFloatBRL(*r.Price))
	return nil
}

func (e *Email) SendTest(ctx context.Context) error {
	return e.deliver(ctx, "Monitor de preços configurado",
		[]byte("<p>O monitor de preços está pronto para enviar alertas por email.</p>"))
}

func (e *Email) deliver(ctx context.Context, subject string, html []byte) error {
	if e.Host == "" || len(e.To) == 0 {
		return errors.New("email: SMTP not configured")
	}
	msg, err := e.message(subject, html)
	if err != nil {
		return fmt.Errorf("email: %w", err)
	}
	send := e.send
	if send == nil {
		send = e.sendSMTP
	}
	if err := send(ctx, msg); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

func (e *Email) message(subject string, html []byte) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", e.From, err)
	}
	if err := m.To(e.To...); err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	m.Subject(subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, string(html))
	return m, nil
}

func (e *Email) port() int {
	if e.Port == 0 {
		return 587
	}
	return e.Port
}

func (e *Email) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultEmailTimeout
	}
	return e.Timeout
}

func (e *Email) sendSMTP(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(e.port()),
		mail.WithTimeout(e.timeout()),
		mail.WithDialContextFunc(e.dial),
	}
	if e.port() == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if e.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.Username),
			mail.WithPassword(e.Password),
		)
	}
	client, err := mail.NewClient(e.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// dial opens the connection with a deadline covering the whole SMTP
// conversation: the greeting and STARTTLS are read before go-mail applies
// its own timeout. Port 465 is implicit TLS.
func (e *Email) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	var (
		conn net.Conn
		err  error
	)
	if e.port() == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: e.Host}}).DialContext(ctx, network, addr)
	} else {
		conn, err = dialer.DialContext(ctx, network, addr)
	}
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(e.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
