package line

import "strings"

// Webhook body shape, trimmed to the fields the append path reads.
// See https://developers.line.biz/en/reference/messaging-api/#webhook-event-objects
type WebhookPayload struct {
	Events []Event `json:"events"`
}

type Event struct {
	Type    string `json:"type"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Source struct {
		UserID string `json:"userId"`
	} `json:"source"`
}

// Message is one loggable text message extracted from a delivery.
type Message struct {
	Text     string
	SenderID string
}

// ExtractMessages filters a delivery down to its text messages, in payload
// order. Non-message events, non-text messages, and messages that are blank
// after trimming are dropped.
func ExtractMessages(payload WebhookPayload) []Message {
	var msgs []Message
	for _, ev := range payload.Events {
		if ev.Type != "message" || ev.Message.Type != "text" {
			continue
		}
		if strings.TrimSpace(ev.Message.Text) == "" {
			continue
		}
		msgs = append(msgs, Message{
			Text:     ev.Message.Text,
			SenderID: ev.Source.UserID,
		})
	}
	return msgs
}
