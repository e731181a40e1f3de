package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	User     string
	Password string
}

// SMTPSender renders messages locally and sends them over SMTP. The
// recipient is taken from the approver_email param and copies from the
// comma separated cc_emails param.
type SMTPSender struct {
	cfg  SMTPConfig
	addr string
	body *template.Template
	send func(e *email.Email, addr string, a smtp.Auth) error
}

var smtpBody = template.Must(template.New("budget-approval").Parse(`<!doctype html>
<html><body style="font-family: sans-serif">
<p>Dear {{.approver_name}},</p>
<p>{{.requester}} submitted budget request <strong>{{.request_number}}</strong> for account {{.account_name}} with amount <strong>{{.amount}}</strong>.</p>
{{.items_table}}
{{if .note}}<p>Note: {{.note}}</p>{{end}}
<p><a href="{{.approve_url}}">Approve</a> | <a href="{{.reject_url}}">Reject</a></p>
</body></html>`))

// NewSMTPSender constructs an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		body: smtpBody,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

// Send renders msg and hands it to the SMTP server. The context is not
// observed by net/smtp.
func (s *SMTPSender) Send(_ context.Context, msg Message) (Result, error) {
	e, err := s.build(msg)
	if err != nil {
		return Result{}, err
	}
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(e, s.addr, auth); err != nil {
		return Result{}, fmt.Errorf("smtp: %w", err)
	}
	return Result{Status: 250, Text: "OK", Transport: "smtp"}, nil
}

func (s *SMTPSender) build(msg Message) (*email.Email, error) {
	to := strings.TrimSpace(msg.Params["approver_email"])
	if to == "" {
		return nil, fmt.Errorf("%w: approver_email missing", ErrRejected)
	}
	data := make(map[string]any, len(msg.Params))
	for k, v := range msg.Params {
		data[k] = v
	}
	// items_table is pre-rendered markup escaped at render time.
	data["items_table"] = template.HTML(msg.Params["items_table"])

	var buf bytes.Buffer
	if err := s.body.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("smtp: render body: %w", err)
	}

	e := email.NewEmail()
	e.From = s.cfg.From
	if e.From == "" {
		e.From = s.cfg.User
	}
	e.To = []string{to}
	e.Cc = splitList(msg.Params["cc_emails"])
	e.Subject = fmt.Sprintf("Budget request %s awaiting approval", msg.Params["request_number"])
	e.HTML = buf.Bytes()
	return e, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
