package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/apperr"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/config"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/logger"
	"github.com/rafaelRojasVi/tattoo-booking-bot-sub001/platform/phone"
)

// Client delivers outbound WhatsApp messages through a gowa-compatible
// gateway. A nil client (gateway not configured) degrades to a no-op; callers
// treat that as a send failure through the window policy, not a crash.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type messageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type templateRequest struct {
	Phone    string   `json:"phone"`
	Template string   `json:"template"`
	Params   []string `json:"params,omitempty"`
}

func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: cfg.GetWhatsAppSendTimeout()},
		log:      log,
	}
}

// SendMessage delivers a free-form text message.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return apperr.Unavailable("whatsapp gateway not configured")
	}

	payload := messageRequest{
		Phone:   phone.WaID(phoneNumber),
		Message: message,
	}
	return c.post(ctx, "/send/message", payload)
}

// SendTemplate delivers a pre-approved template message. Templated sends are
// the only outbound permitted once the free-form window has closed.
func (c *Client) SendTemplate(ctx context.Context, phoneNumber, templateName string, params []string) error {
	if c == nil {
		return apperr.Unavailable("whatsapp gateway not configured")
	}

	payload := templateRequest{
		Phone:    phone.WaID(phoneNumber),
		Template: templateName,
		Params:   params,
	}
	return c.post(ctx, "/send/template", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "whatsapp request failed", err).WithOp("whatsapp.post")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return apperr.Unavailable(fmt.Sprintf("whatsapp gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))).WithOp("whatsapp.post")
	}

	c.log.Debug("whatsapp sent", "path", path)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
