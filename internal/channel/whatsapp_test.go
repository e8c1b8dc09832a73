package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gastobot/internal/config"
	"gastobot/internal/domain"
)

type captureBus struct {
	published []domain.InboundMessage
	handlers  map[string]func(domain.OutboundMessage)
}

func newCaptureBus() *captureBus {
	return &captureBus{handlers: map[string]func(domain.OutboundMessage){}}
}

func (c *captureBus) Publish(msg domain.InboundMessage) { c.published = append(c.published, msg) }
func (c *captureBus) Subscribe() <-chan domain.InboundMessage {
	return nil
}
func (c *captureBus) SendOutbound(msg domain.OutboundMessage) {}
func (c *captureBus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	c.handlers[channelName] = handler
}
func (c *captureBus) Close() {}

type scriptedAdmitter struct {
	outcome domain.CheckOutcome
	err     error
	calls   int
}

func (a *scriptedAdmitter) Admit(_ context.Context, _ domain.InboundMessage) (domain.CheckOutcome, error) {
	a.calls++
	return a.outcome, a.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChannel(t *testing.T, cfg config.WhatsAppConfig, admitter Admitter) (*WhatsApp, *captureBus) {
	t.Helper()
	w := NewWhatsApp(cfg, admitter, testLogger())
	bus := newCaptureBus()
	if err := w.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return w, bus
}

func textPayload(from, id, body string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"messages": [{"from": %q, "id": %q, "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, from, id, body)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWhatsApp_Verification(t *testing.T) {
	t.Parallel()

	w, _ := newTestChannel(t, config.WhatsAppConfig{VerifyToken: "tok"}, &scriptedAdmitter{})

	req := httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "12345" {
		t.Fatalf("verification = (%d, %q)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad token status = %d", rec.Code)
	}
}

func TestWhatsApp_IncomingPublishesAdmitted(t *testing.T) {
	t.Parallel()

	admitter := &scriptedAdmitter{outcome: domain.OutcomeAccepted}
	w, bus := newTestChannel(t, config.WhatsAppConfig{AppSecret: "s3cret"}, admitter)

	body := []byte(textPayload("+5690000001", "wamid.1", "add 12.50 food"))
	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign("s3cret", body))
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published = %d messages", len(bus.published))
	}
	got := bus.published[0]
	if got.SenderID != "+5690000001" || got.MessageID != "wamid.1" || got.Body != "add 12.50 food" {
		t.Fatalf("unexpected inbound %+v", got)
	}
}

func TestWhatsApp_InvalidSignatureRejected(t *testing.T) {
	t.Parallel()

	admitter := &scriptedAdmitter{outcome: domain.OutcomeAccepted}
	w, bus := newTestChannel(t, config.WhatsAppConfig{AppSecret: "s3cret"}, admitter)

	body := textPayload("+5690000001", "wamid.1", "hola")
	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(bus.published) != 0 || admitter.calls != 0 {
		t.Fatal("forged request must not reach the guard or the bus")
	}
}

func TestWhatsApp_DuplicateAckedWithoutPublish(t *testing.T) {
	t.Parallel()

	admitter := &scriptedAdmitter{outcome: domain.OutcomeDuplicate}
	w, bus := newTestChannel(t, config.WhatsAppConfig{}, admitter)

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(textPayload("+5690000001", "wamid.1", "hola")))
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate must still be acknowledged, status = %d", rec.Code)
	}
	if len(bus.published) != 0 {
		t.Fatal("duplicate must not be published")
	}
}

func TestWhatsApp_GuardOutageTriggersRetry(t *testing.T) {
	t.Parallel()

	admitter := &scriptedAdmitter{err: fmt.Errorf("redis: %w", domain.ErrStoreUnavailable)}
	w, bus := newTestChannel(t, config.WhatsAppConfig{}, admitter)

	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(textPayload("+5690000001", "wamid.1", "hola")))
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 so the provider redelivers", rec.Code)
	}
	if len(bus.published) != 0 {
		t.Fatal("unadmitted message must not be published")
	}
}

func TestWhatsApp_NonTextMessagesSkipped(t *testing.T) {
	t.Parallel()

	admitter := &scriptedAdmitter{outcome: domain.OutcomeAccepted}
	w, bus := newTestChannel(t, config.WhatsAppConfig{}, admitter)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"messages": [{"from": "+5690000001", "id": "wamid.1", "type": "image"}]
		}}]}]
	}`
	req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	w.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if admitter.calls != 0 || len(bus.published) != 0 {
		t.Fatal("non-text message must be ignored")
	}
}

func TestWhatsApp_OutboundDeliveredAsSender(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, bus := newTestChannel(t, config.WhatsAppConfig{AccessToken: "tok", PhoneNumberID: "555"}, &scriptedAdmitter{})
	w.apiBase = srv.URL

	// The gateway feeds the channel to the bus strictly as a domain.Sender.
	var sender domain.Sender = w
	bus.OnOutbound(w.Name(), func(msg domain.OutboundMessage) {
		if err := sender.Send(context.Background(), msg.SenderID, msg.Body); err != nil {
			t.Errorf("Send() error: %v", err)
		}
	})

	handler, ok := bus.handlers["whatsapp"]
	if !ok {
		t.Fatal("no outbound handler registered for the channel")
	}
	handler(domain.OutboundMessage{Channel: "whatsapp", SenderID: "+5690000001", Body: "Resumen"})

	if captured["to"] != "+5690000001" {
		t.Errorf("to = %v", captured["to"])
	}
	text, _ := captured["text"].(map[string]any)
	if text["body"] != "Resumen" {
		t.Errorf("body = %v", text["body"])
	}
}

func TestWhatsApp_SendPostsToCloudAPI(t *testing.T) {
	t.Parallel()

	var captured map[string]any
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&captured)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWhatsApp(config.WhatsAppConfig{AccessToken: "tok", PhoneNumberID: "555"}, &scriptedAdmitter{}, testLogger())
	w.apiBase = srv.URL

	if err := w.Send(context.Background(), "+5690000001", "Gasto registrado"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if authHeader != "Bearer tok" {
		t.Errorf("auth header = %q", authHeader)
	}
	if captured["to"] != "+5690000001" {
		t.Errorf("to = %v", captured["to"])
	}
	text, _ := captured["text"].(map[string]any)
	if text["body"] != "Gasto registrado" {
		t.Errorf("body = %v", text["body"])
	}
}
