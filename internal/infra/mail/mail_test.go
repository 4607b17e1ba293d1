package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestSMTPMailer_Message(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Port: 587, From: "Atendimento BR <no-reply@atendimentobr.com>"}, zap.NewNop())

	msg := m.message("ana@example.com", "Seu código", "<p>Código: <strong>123456</strong></p>")
	if got := msg.GetHeader("To"); len(got) != 1 || got[0] != "ana@example.com" {
		t.Errorf("unexpected To %v", got)
	}
	if got := msg.GetHeader("From"); len(got) != 1 || !strings.Contains(got[0], "no-reply@atendimentobr.com") {
		t.Errorf("unexpected From %v", got)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	raw := buf.String()
	if !strings.Contains(raw, "Content-Type: text/html") {
		t.Errorf("expected html body, got:\n%s", raw)
	}
	if !strings.Contains(raw, "Subject:") {
		t.Errorf("expected subject header, got:\n%s", raw)
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	// Port 1 on localhost would refuse; a canceled context must return first.
	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "a@b.c"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Send(ctx, "ana@example.com", "x", "y"); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLogMailer_KeepsLastPerRecipient(t *testing.T) {
	m := NewLogMailer(zap.NewNop())
	ctx := context.Background()

	if _, ok := m.Last("ana@example.com"); ok {
		t.Fatal("expected no message yet")
	}
	_ = m.Send(ctx, "ana@example.com", "primeiro", "<p>1</p>")
	_ = m.Send(ctx, "ana@example.com", "segundo", "<p>2</p>")
	_ = m.Send(ctx, "bia@example.com", "outro", "<p>3</p>")

	msg, ok := m.Last("ana@example.com")
	if !ok || msg.Subject != "segundo" || msg.Body != "<p>2</p>" || msg.To != "ana@example.com" {
		t.Errorf("unexpected last message %+v", msg)
	}
	if msg, _ := m.Last("bia@example.com"); msg.Subject != "outro" {
		t.Errorf("messages crossed recipients: %+v", msg)
	}
}
