/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/yeargame/internal/game"
)

const qrSize = 320

type sessionInfo interface {
	JoinURL() (string, error)
	Snapshot() (game.Snapshot, error)
}

// joinLink prefers the configured public url and otherwise derives one from
// the request, respecting X-Forwarded-Proto.
func joinLink(cfg *Config, engine sessionInfo, r *http.Request) (string, error) {
	link, err := engine.JoinURL()
	if err != nil || link != "" {
		return link, err
	}

	snap, err := engine.Snapshot()
	if err != nil {
		return "", err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     cfg.prefix + "/",
		RawQuery: url.Values{"game": {snap.GameID}}.Encode(),
	}

	return u.String(), nil
}

func serveQR(cfg *Config, engine sessionInfo, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		link, err := joinLink(cfg, engine, r)
		if err != nil {
			http.Error(w, "no game in progress", http.StatusServiceUnavailable)
			return
		}

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("link", link).
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("served qr code")
	}
}
