// Package mailer renders and delivers the storefront's transactional
// emails. Delivery is best-effort: a failed send is logged, never
// propagated into order or stock state.
package mailer

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guilucasv/teodorofit/internal/models"
	"gopkg.in/gomail.v2"
)

type Options struct {
	SMTPHost     string // empty disables SMTP; emails are still persisted
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	OperatorMail string
	EmailDir     string
}

type Mailer struct {
	dialer   *gomail.Dialer
	from     string
	operator string
	dir      string
}

func New(opts Options) (*Mailer, error) {
	m := &Mailer{
		from:     opts.From,
		operator: opts.OperatorMail,
		dir:      opts.EmailDir,
	}
	if m.dir != "" {
		if err := os.MkdirAll(m.dir, 0o755); err != nil {
			return nil, fmt.Errorf("create email dir: %w", err)
		}
	}
	if opts.SMTPHost != "" {
		m.dialer = gomail.NewDialer(opts.SMTPHost, opts.SMTPPort, opts.SMTPUser, opts.SMTPPassword)
	} else {
		slog.Warn("SMTP_HOST not set, emails will only be written to disk")
	}
	return m, nil
}

func (m *Mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// persist writes the rendered email to disk before any network send, so a
// delivery failure is still inspectable.
func (m *Mailer) persist(kind, body string) {
	if m.dir == "" {
		return
	}
	name := fmt.Sprintf("%s-%s.html", time.Now().Format("20060102-150405.000"), slug(kind))
	if err := os.WriteFile(filepath.Join(m.dir, name), []byte(body), 0o644); err != nil {
		slog.Error("Failed to persist email copy", "kind", kind, "error", err)
	}
}

func slug(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, s)
}

func (m *Mailer) send(to, subject, body, kind string) error {
	m.persist(kind, body)

	if m.dialer == nil {
		slog.Info("📧 Email (mock)", "to", to, "subject", subject)
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	slog.Info("📧 Email sent", "to", to, "subject", subject)
	return nil
}

// SendOrderConfirmation picks the receipt template by order status:
// approved orders get the full confirmation, pending/in-process ones get
// the awaiting-payment variant.
func (m *Mailer) SendOrderConfirmation(order *models.Order) error {
	tmplName := "order_pending"
	subject := "Pedido recebido - Teodoro Fitness"
	if order.Status == models.StatusApproved {
		tmplName = "order_approved"
		subject = "Pedido confirmado - Teodoro Fitness"
	}

	body, err := m.render(tmplName, map[string]any{"Order": order})
	if err != nil {
		return err
	}
	return m.send(order.Customer.Email, subject, body, tmplName)
}

func (m *Mailer) SendOperatorNotice(order *models.Order) error {
	if m.operator == "" {
		slog.Debug("OPERATOR_MAIL not set, skipping operator notice", "order", order.ID)
		return nil
	}
	body, err := m.render("operator_notice", map[string]any{"Order": order})
	if err != nil {
		return err
	}
	return m.send(m.operator, "Novo pedido "+order.ID+" - Teodoro Fitness", body, "operator_notice")
}

func (m *Mailer) SendLowStockAlert(products []models.Product) error {
	if m.operator == "" {
		slog.Debug("OPERATOR_MAIL not set, skipping low-stock alert")
		return nil
	}
	body, err := m.render("low_stock_alert", map[string]any{"Products": products})
	if err != nil {
		return err
	}
	return m.send(m.operator, "Alerta de estoque baixo - Teodoro Fitness", body, "low_stock_alert")
}
