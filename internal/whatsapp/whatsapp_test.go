package whatsapp

import (
	"context"
	"testing"
)

func TestMockClientSendMessage(t *testing.T) {
	m := NewMockClient()
	if err := m.SendMessage(context.Background(), "50588881234", "hola"); err != nil {
		t.Errorf("MockClient.SendMessage failed: %v", err)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	c := &Client{}
	if err := c.SendMessage(context.Background(), "50588881234", "hola"); err == nil {
		t.Error("expected error for uninitialized client")
	}
}
