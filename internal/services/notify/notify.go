// Package notify sends transactional email, either directly over SMTP or by
// queueing it on Kafka for the worker to deliver.
package notify

import (
	"context"
	"strings"
	"time"

	"crosplit/internal/config"
	"crosplit/internal/logger"
)

// Message kinds.
const (
	KindExperienceCreated = "experience.created"
	KindWinnerFound       = "winner.found"
)

// Message is one email, also the Kafka event payload.
type Message struct {
	Kind      string    `json:"type"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender delivers or enqueues a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Recipients splits a comma separated recipient list, dropping blanks.
func Recipients(lists ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, addr := range strings.Split(list, ",") {
			addr = strings.TrimSpace(addr)
			if addr == "" || seen[strings.ToLower(addr)] {
				continue
			}
			seen[strings.ToLower(addr)] = true
			out = append(out, addr)
		}
	}
	return out
}

// NewSender picks the Kafka publisher when brokers are configured, else the SMTP mailer.
// The returned close func releases the publisher.
func NewSender(cfg *config.Config, logger *logger.Logger) (Sender, func() error) {
	if len(cfg.KafkaBrokers) > 0 {
		p := NewPublisher(cfg.KafkaBrokers, cfg.KafkaNotifyTopic, logger)
		return p, p.Close
	}
	return NewMailer(cfg, logger), func() error { return nil }
}
