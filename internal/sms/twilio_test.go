package sms

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockCreator struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (m *mockCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.params = append(m.params, params)
	if m.err != nil {
		return nil, m.err
	}
	return &twilioApi.ApiV2010Message{}, nil
}

func TestConfigured(t *testing.T) {
	if NewClient("", "", "+15550000000", "").Configured() {
		t.Error("expected Configured() = false without credentials")
	}
	if NewClient("AC123", "secret", "", "").Configured() {
		t.Error("expected Configured() = false without a sender")
	}
	if !NewClient("AC123", "secret", "+15550000000", "").Configured() {
		t.Error("expected Configured() = true")
	}
	if !NewClient("AC123", "secret", "", "MG123").Configured() {
		t.Error("expected Configured() = true with messaging service")
	}
}

func TestSendFromNumber(t *testing.T) {
	mock := &mockCreator{}
	c := &Client{api: mock, fromNumber: "+15550000000"}

	if err := c.Send(context.Background(), "+15551112222", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(mock.params) != 1 {
		t.Fatalf("calls = %d, want 1", len(mock.params))
	}
	p := mock.params[0]
	if p.To == nil || *p.To != "+15551112222" {
		t.Errorf("To = %v", p.To)
	}
	if p.From == nil || *p.From != "+15550000000" {
		t.Errorf("From = %v", p.From)
	}
	if p.MessagingServiceSid != nil {
		t.Errorf("MessagingServiceSid = %v, want nil", *p.MessagingServiceSid)
	}
	if p.Body == nil || *p.Body != "hello" {
		t.Errorf("Body = %v", p.Body)
	}
}

func TestSendMessagingServicePreferred(t *testing.T) {
	mock := &mockCreator{}
	c := &Client{api: mock, fromNumber: "+15550000000", messagingServiceSID: "MG123"}

	if err := c.Send(context.Background(), "+15551112222", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	p := mock.params[0]
	if p.MessagingServiceSid == nil || *p.MessagingServiceSid != "MG123" {
		t.Errorf("MessagingServiceSid = %v", p.MessagingServiceSid)
	}
	if p.From != nil {
		t.Errorf("From = %v, want nil", *p.From)
	}
}

func TestSendErrors(t *testing.T) {
	if err := NewClient("", "", "", "").Send(context.Background(), "+1", "x"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	c := &Client{api: &mockCreator{err: errors.New("boom")}, fromNumber: "+15550000000"}
	if err := c.Send(context.Background(), "+15551112222", "x"); err == nil {
		t.Error("expected provider error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Send(ctx, "+15551112222", "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
