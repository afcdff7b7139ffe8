package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed sidebar colors per event.
const (
	discordColorOK   = 0x2e8b57
	discordColorFail = 0xcc3333
)

// DiscordSender posts run events to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a sender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordRequest struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send posts the message as a single embed, colored by outcome.
func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	color := discordColorOK
	if msg.Event == EventRunFailed {
		color = discordColorFail
	}

	body, err := json.Marshal(discordRequest{
		Embeds: []discordEmbed{{
			Title:       msg.Title,
			Description: msg.Body,
			Color:       color,
		}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post %s event: %w", msg.Event, err)
	}
	defer resp.Body.Close()

	// Discord replies 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
