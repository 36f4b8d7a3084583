/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/analytics"
	"github.com/Seednode/yeargame/internal/game"
	"github.com/Seednode/yeargame/internal/gateway"
	"github.com/Seednode/yeargame/internal/playback"
	"github.com/Seednode/yeargame/internal/playlist"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'self'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("yeargame v" + releaseVersion + "\n"))
		if err != nil {
			errs <- err

			return
		}

		log.Debug().
			Str("size", humanReadableSize(int64(written))).
			Str("remote", realIP(r)).
			Dur("took", time.Since(startTime).Round(time.Microsecond)).
			Msg("served version")
	}
}

// originChecker accepts same-host websocket upgrades plus whatever the cors
// policy allows, if there is one.
func originChecker(c *cors.Cors) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}

		return c != nil && c.OriginAllowed(r)
	}
}

func newSink(ctx context.Context, cfg *Config) (game.Sink, func()) {
	sinks := analytics.Multi{analytics.LogSink{}}
	var closers []func()

	if cfg.natsURL != "" {
		s, err := analytics.NewNATSSink(cfg.natsURL, cfg.natsSubject)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.natsURL).Msg("nats summaries disabled")
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		}
	}

	if cfg.databaseURL != "" {
		s, err := analytics.NewPostgresSink(ctx, cfg.databaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres summaries disabled")
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func ServePage(ctx context.Context, cfg *Config) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	setupLogging(cfg)

	log.Info().Str("version", releaseVersion).Msg("starting yeargame")

	songs, err := playlist.Load(cfg.playlists...)
	if err != nil {
		return err
	}

	sink, closeSink := newSink(ctx, cfg)
	defer closeSink()

	speaker := playback.NewMPD(cfg.mpdAddress)

	engine := game.NewEngine(cfg.gameConfig(), speaker, sink)

	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	go engine.Run(engineCtx)

	created, err := engine.Create(songs)
	if err != nil {
		return fmt.Errorf("create game: %w", err)
	}

	log.Info().
		Str("game_id", created.ID).
		Str("join_url", created.JoinURL).
		Str("speaker", speaker.String()).
		Msg("game ready")

	mux := httprouter.New()

	var handler http.Handler = mux

	var policy *cors.Cors
	if len(cfg.corsOrigins) > 0 {
		policy = cors.New(cors.Options{
			AllowedOrigins:   cfg.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodHead},
			AllowCredentials: true,
		})
		handler = policy.Handler(mux)
	}

	hubCfg := gateway.DefaultConfig()
	hubCfg.CheckOrigin = originChecker(policy)

	hub := gateway.NewHub(engine, hubCfg)
	engine.Subscribe(hub.Broadcast)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           handler,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)
		w.WriteHeader(http.StatusInternalServerError)

		io.WriteString(w, newPage("Server Error", "An error has occurred. Please try again."))
	}

	errs := make(chan error, 64)
	go drainErrors(errs)

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/qr", serveQR(cfg, engine, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	mux.Handler(http.MethodGet, cfg.prefix+"/ws", hub)

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	go func() {
		var err error
		log.Info().Msgf("listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()

	log.Info().Int("clients", hub.Count()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return nil
}
