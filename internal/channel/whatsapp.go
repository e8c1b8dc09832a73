// Package channel implements the messaging-provider edge: webhook ingress
// and Cloud API delivery for WhatsApp.
package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gastobot/internal/config"
	"gastobot/internal/domain"
)

const whatsappAPIBase = "https://graph.facebook.com/v21.0"

// Admitter is the pipeline's synchronous first stage. The webhook runs it
// before acknowledging the provider so a guard-store outage maps to a
// retryable HTTP status instead of a lost message.
type Admitter interface {
	Admit(ctx context.Context, msg domain.InboundMessage) (domain.CheckOutcome, error)
}

// WhatsApp is the WhatsApp Business Cloud API channel.
type WhatsApp struct {
	cfg      config.WhatsAppConfig
	bus      domain.MessageBus
	admitter Admitter
	logger   *slog.Logger
	client   *http.Client
	mux      *http.ServeMux
	apiBase  string
}

func NewWhatsApp(cfg config.WhatsAppConfig, admitter Admitter, logger *slog.Logger) *WhatsApp {
	return &WhatsApp{
		cfg:      cfg,
		admitter: admitter,
		logger:   logger,
		client:   &http.Client{Timeout: 30 * time.Second},
		apiBase:  whatsappAPIBase,
	}
}

// Send is delegated through domain.Sender by the gateway's outbound wiring.
var _ domain.Sender = (*WhatsApp)(nil)

func (w *WhatsApp) Name() string { return "whatsapp" }

// Start mounts the webhook routes. Outbound delivery is wired separately:
// the gateway registers a bus handler that feeds this channel as a
// domain.Sender.
func (w *WhatsApp) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	w.mux = http.NewServeMux()
	webhookPath := w.cfg.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook/whatsapp"
	}

	w.mux.HandleFunc("GET "+webhookPath, w.handleVerification)
	w.mux.HandleFunc("POST "+webhookPath, w.handleIncoming)

	w.logger.Info("whatsapp channel ready", "webhook", webhookPath)
	return nil
}

func (w *WhatsApp) Stop() error { return nil }

// Handler returns the HTTP handler for the webhook (mounted on the main mux).
func (w *WhatsApp) Handler() http.Handler {
	if w.mux == nil {
		return http.NotFoundHandler()
	}
	return w.mux
}

// handleVerification answers the webhook verification challenge.
func (w *WhatsApp) handleVerification(rw http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == w.cfg.VerifyToken {
		w.logger.Info("whatsapp webhook verified")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, html.EscapeString(challenge))
		return
	}

	w.logger.Warn("whatsapp webhook verification failed", "mode", mode)
	http.Error(rw, "Forbidden", http.StatusForbidden)
}

// handleIncoming ingests provider deliveries. Each text message passes the
// idempotency guard before the request is acknowledged: duplicates are
// dropped with a 200, a guard-store failure turns the whole delivery into a
// 500 so the provider redelivers.
func (w *WhatsApp) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	if w.cfg.AppSecret != "" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(rw, "Bad request", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sig := r.Header.Get("X-Hub-Signature-256")
		if !w.verifySignature(body, sig) {
			w.logger.Warn("whatsapp invalid signature")
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload waPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.logger.Warn("whatsapp bad payload", "err", err)
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value.Messages == nil {
				continue
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}

				inbound := domain.InboundMessage{
					Channel:    "whatsapp",
					SenderID:   msg.From,
					MessageID:  msg.ID,
					Body:       msg.Text.Body,
					ReceivedAt: time.Now(),
				}

				outcome, err := w.admitter.Admit(r.Context(), inbound)
				if err != nil {
					if errors.Is(err, domain.ErrStoreUnavailable) {
						w.logger.Error("idempotency store unavailable", "err", err)
						http.Error(rw, "Service unavailable", http.StatusInternalServerError)
						return
					}
					w.logger.Error("admit failed", "err", err, "message_id", msg.ID)
					http.Error(rw, "Internal error", http.StatusInternalServerError)
					return
				}
				if outcome == domain.OutcomeDuplicate {
					continue
				}

				w.logger.Info("whatsapp message received",
					"from", msg.From, "message_id", msg.ID, "text_len", len(msg.Text.Body))
				w.bus.Publish(inbound)
			}
		}
	}

	rw.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Hub-Signature-256 header.
func (w *WhatsApp) verifySignature(body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(w.cfg.AppSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// Send delivers a text message via the Cloud API. Implements domain.Sender.
func (w *WhatsApp) Send(ctx context.Context, to string, text string) error {
	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.cfg.PhoneNumberID)

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// --- WhatsApp webhook payload types ---

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages"`
}

type waMessage struct {
	From string  `json:"from"`
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Text *waText `json:"text,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}
