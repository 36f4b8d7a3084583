/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/game"
)

const DefaultSubject = "yeargame.summaries"

// NATSSink publishes each summary as JSON on a subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	opts := []nats.Option{
		nats.Name("yeargame"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Record(ctx context.Context, sum game.Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if err := s.nc.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}

	if err := s.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}

	return nil
}

func (s *NATSSink) Close() {
	s.nc.Close()
}
