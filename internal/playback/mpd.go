/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package playback drives an MPD server as the shared speaker.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/game"
)

type conn interface {
	Clear() error
	Add(uri string) error
	Play(pos int) error
	CurrentSong() (mpd.Attrs, error)
	Ping() error
	Close() error
}

type dialFunc func(network, addr, password string) (conn, error)

func dialMPD(network, addr, password string) (conn, error) {
	return mpd.DialAuthenticated(network, addr, password)
}

// MPD implements game.Playback. Each call opens a short-lived connection.
type MPD struct {
	network  string
	addr     string
	password string
	dial     dialFunc
}

// NewMPD parses address as a unix socket path, or host:port with an
// optional "password@" prefix in the style of MPD_HOST.
func NewMPD(address string) *MPD {
	m := &MPD{network: "tcp", addr: address, dial: dialMPD}

	if i := strings.LastIndex(address, "@"); i > 0 {
		m.password = address[:i]
		m.addr = address[i+1:]
	}

	if strings.HasPrefix(m.addr, "/") {
		m.network = "unix"
	}

	return m
}

func (m *MPD) String() string {
	return m.network + ":" + m.addr
}

type result[T any] struct {
	value T
	err   error
}

// query runs fn on a fresh connection, giving up when ctx is done. fn's
// value is handed over only through the channel, so an abandoned call never
// shares memory with the caller.
func query[T any](ctx context.Context, m *MPD, fn func(c conn) (T, error)) (T, error) {
	done := make(chan result[T], 1)

	go func() {
		c, err := m.dial(m.network, m.addr, m.password)
		if err != nil {
			done <- result[T]{err: fmt.Errorf("%w: dial %s: %v", game.ErrTargetUnavailable, m, err)}
			return
		}
		defer func() {
			_ = c.Close()
		}()

		v, err := fn(c)
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", game.ErrTargetUnavailable, m, ctx.Err())
	}
}

func (m *MPD) do(ctx context.Context, fn func(c conn) error) error {
	_, err := query(ctx, m, func(c conn) (struct{}, error) {
		return struct{}{}, fn(c)
	})
	return err
}

// classify separates a lost connection from an ACK about one song.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %v", game.ErrTargetUnavailable, op, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// Play replaces the queue with uri and starts it.
func (m *MPD) Play(ctx context.Context, uri string) error {
	err := m.do(ctx, func(c conn) error {
		if err := c.Clear(); err != nil {
			return classify("clear", err)
		}

		if err := c.Add(uri); err != nil {
			return classify("add "+uri, err)
		}

		return classify("play", c.Play(0))
	})

	if err != nil {
		log.Debug().Err(err).Str("target", m.String()).Str("uri", uri).Msg("playback failed")
		return err
	}

	log.Debug().Str("target", m.String()).Str("uri", uri).Msg("playback started")

	return nil
}

// NowPlaying reports the tags of the current song.
func (m *MPD) NowPlaying(ctx context.Context) (game.Metadata, error) {
	return query(ctx, m, func(c conn) (game.Metadata, error) {
		attrs, err := c.CurrentSong()
		if err != nil {
			return game.Metadata{}, classify("currentsong", err)
		}

		meta := game.Metadata{Artist: attrs["Artist"], Title: attrs["Title"]}
		if meta.Title == "" {
			meta.Title = attrs["Name"]
		}

		return meta, nil
	})
}

// Available reports whether the server answers a ping.
func (m *MPD) Available(ctx context.Context) bool {
	err := m.do(ctx, func(c conn) error {
		return c.Ping()
	})
	if err != nil {
		log.Debug().Err(err).Str("target", m.String()).Msg("playback target unavailable")
	}

	return err == nil
}
