package messaging

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type mockSender struct {
	sent []struct{ to, body string }
}

func (m *mockSender) SendMessage(ctx context.Context, to, body string) error {
	m.sent = append(m.sent, struct{ to, body string }{to, body})
	return nil
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+505 8888 1234", "50588881234", false},
		{"50588881234", "50588881234", false},
		{"(505) 8888-1234", "50588881234", false},
		{"", "", true},
		{"abc", "", true},
		{"123", "", true},
	}
	for _, tt := range tests {
		got, err := canonicalizePhone(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("canonicalizePhone(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("canonicalizePhone(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("canonicalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTwilioServiceSendMessageCanonicalizes(t *testing.T) {
	sender := &mockSender{}
	svc := NewTwilioService(sender)

	if err := svc.SendMessage(context.Background(), "+505 8888-1234", "hola"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].to != "50588881234" {
		t.Errorf("to = %q, want canonicalized digits", sender.sent[0].to)
	}

	select {
	case receipt := <-svc.Receipts():
		if receipt.To != "50588881234" {
			t.Errorf("receipt.To = %q", receipt.To)
		}
	default:
		t.Error("expected a sent receipt")
	}
}

func TestTwilioServiceStoppedSendFails(t *testing.T) {
	svc := NewTwilioService(&mockSender{})
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "50588881234", "hola"); err != ErrServiceStopped {
		t.Errorf("SendMessage = %v, want ErrServiceStopped", err)
	}
}

func TestTwilioWebhookHandlerEmitsResponse(t *testing.T) {
	svc := NewTwilioService(&mockSender{})

	form := url.Values{}
	form.Set("From", "whatsapp:+50588881234")
	form.Set("Body", "hola")
	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	select {
	case resp := <-svc.Responses():
		if resp.Body != "hola" {
			t.Errorf("Body = %q", resp.Body)
		}
		if resp.From != "whatsapp:+50588881234" {
			t.Errorf("From = %q", resp.From)
		}
	default:
		t.Error("expected an emitted response")
	}
}

func TestTwilioWebhookHandlerRejectsMissingFields(t *testing.T) {
	svc := NewTwilioService(&mockSender{})

	req := httptest.NewRequest("POST", "/webhook/twilio", strings.NewReader("From=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	svc.WebhookHandler(rec, req)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
