// Package notification posts run outcomes to a Discord webhook. Used by the
// batch runner; a missing webhook URL disables it silently.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// Notifier sends analysis outcome messages.
type Notifier struct {
	WebhookURL string
}

// Failure reports a failed batch or analysis run.
func (n Notifier) Failure(message string) error {
	if n.WebhookURL == "" {
		return nil
	}
	return n.send(DiscordEmbed{
		Title:       "🔥 Burn analysis failed",
		Description: message,
		Color:       colorRed,
	})
}

// Success reports a completed run with its artifact locations.
func (n Notifier) Success(message string) error {
	if n.WebhookURL == "" {
		return nil
	}
	return n.send(DiscordEmbed{
		Title:       "✅ Burn analysis complete",
		Description: message,
		Color:       colorGreen,
	})
}

func (n Notifier) send(embed DiscordEmbed) error {
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := http.Post(n.WebhookURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
