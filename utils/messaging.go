package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// messaging gateway request payload
type messageRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Channel string `json:"channel"`
	Body    string `json:"body"`
}

// MessagingGateway sends SMS, WhatsApp and voice messages through a JSON
// HTTP API.
type MessagingGateway struct {
	URL    string // e.g. https://api.example-sms.com/v1/messages
	APIKey string // sent verbatim in the Authorization header
	From   string // sender id
	Client *http.Client
}

func NewMessagingGateway(url, apiKey, from string) *MessagingGateway {
	return &MessagingGateway{
		URL:    url,
		APIKey: apiKey,
		From:   from,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *MessagingGateway) Send(ctx context.Context, channel, to, body string) error {
	if g.URL == "" || g.APIKey == "" {
		return fmt.Errorf("missing required messaging config")
	}

	jsonData, err := json.Marshal(messageRequest{From: g.From, To: to, Channel: channel, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", g.APIKey)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("messaging gateway request failed", "to", to, "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		slog.Error("messaging gateway rejected message", "to", to, "status", resp.Status)
		return fmt.Errorf("messaging API error: %s", resp.Status)
	}

	slog.Debug("reminder sent", "channel", channel, "to", to)
	return nil
}
