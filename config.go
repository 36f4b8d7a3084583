/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/yeargame/internal/game"
)

type Config struct {
	bind      string
	port      int
	prefix    string
	profile   bool
	tlsCert   string
	tlsKey    string
	verbose   bool
	version   bool
	publicURL string

	corsOrigins []string
	playlists   []string
	mpdAddress  string

	roundDuration time.Duration
	gracePeriod   time.Duration
	maxPlayers    int
	rounds        int
	yearMin       int
	yearMax       int
	speedBonus    bool
	stealsPerGame int

	natsURL     string
	natsSubject string
	databaseURL string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if len(c.playlists) == 0 {
		return errors.New("at least one --playlist is required")
	}
	if c.mpdAddress == "" {
		return errors.New("--mpd-address must not be empty")
	}
	if c.roundDuration <= 0 {
		return fmt.Errorf("invalid round duration (must be positive): %s", c.roundDuration)
	}
	if c.gracePeriod < 0 {
		return fmt.Errorf("invalid grace period (must not be negative): %s", c.gracePeriod)
	}
	if c.maxPlayers < 1 {
		return fmt.Errorf("invalid max players (must be at least 1): %d", c.maxPlayers)
	}
	if c.rounds < 0 {
		return fmt.Errorf("invalid rounds (must not be negative): %d", c.rounds)
	}
	if c.yearMin < 1 || c.yearMin > c.yearMax {
		return fmt.Errorf("invalid year range: %d-%d", c.yearMin, c.yearMax)
	}
	if c.stealsPerGame < 0 {
		return fmt.Errorf("invalid steals per game (must not be negative): %d", c.stealsPerGame)
	}
	if c.publicURL != "" {
		u, err := url.Parse(c.publicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url: %q", c.publicURL)
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// defaultPublicURL guesses the address phones on the same network can reach
// when --public-url is not set. An unspecified bind address is replaced with
// the first non-loopback IPv4 address of this host.
func (c *Config) defaultPublicURL() string {
	host := c.bind

	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = ""

		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return ""
		}

		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
				continue
			}
			host = ipNet.IP.String()
			break
		}

		if host == "" {
			return ""
		}
	}

	u := url.URL{Scheme: c.scheme(), Host: net.JoinHostPort(host, strconv.Itoa(c.port))}

	return u.String()
}

// joinBase is the public address players open, if one is known.
func (c *Config) joinBase() string {
	if c.publicURL == "" {
		return ""
	}
	return strings.TrimSuffix(c.publicURL, "/") + c.prefix + "/"
}

func (c *Config) gameConfig() game.Config {
	g := game.DefaultConfig()

	g.RoundDuration = c.roundDuration
	g.GracePeriod = c.gracePeriod
	g.MaxPlayers = c.maxPlayers
	g.Rounds = c.rounds
	g.YearMin = c.yearMin
	g.YearMax = c.yearMax
	g.SpeedBonus = c.speedBonus
	g.StealsPerGame = c.stealsPerGame
	g.JoinURL = c.joinBase()

	return g
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("YEARGAME")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "yeargame",
		Short:         "A party game where everyone guesses the release year of the song playing on the speaker.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")
			if cfg.publicURL == "" {
				cfg.publicURL = cfg.defaultPublicURL()
			}

			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := game.DefaultConfig()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: YEARGAME_BIND)")
	fs.StringSliceVar(&cfg.corsOrigins, "cors-origin", nil, "additional origin allowed to connect, repeatable (env: YEARGAME_CORS_ORIGIN)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres url for game summaries (env: YEARGAME_DATABASE_URL)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", defaults.GracePeriod, "time a disconnected player keeps their seat (env: YEARGAME_GRACE_PERIOD)")
	fs.IntVar(&cfg.maxPlayers, "max-players", defaults.MaxPlayers, "maximum players per game (env: YEARGAME_MAX_PLAYERS)")
	fs.StringVar(&cfg.mpdAddress, "mpd-address", "localhost:6600", "mpd server as host:port or socket path, optionally password@ prefixed (env: YEARGAME_MPD_ADDRESS)")
	fs.StringVar(&cfg.natsSubject, "nats-subject", "yeargame.summaries", "nats subject for game summaries (env: YEARGAME_NATS_SUBJECT)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "nats server for game summaries (env: YEARGAME_NATS_URL)")
	fs.StringSliceVar(&cfg.playlists, "playlist", nil, "path to a yaml playlist, repeatable (env: YEARGAME_PLAYLIST)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: YEARGAME_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: YEARGAME_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: YEARGAME_PROFILE)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "base url players use to join, encoded in the qr code (env: YEARGAME_PUBLIC_URL)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", defaults.RoundDuration, "time allowed for guesses each round (env: YEARGAME_ROUND_DURATION)")
	fs.IntVar(&cfg.rounds, "rounds", 0, "rounds per game, 0 plays every song (env: YEARGAME_ROUNDS)")
	fs.BoolVar(&cfg.speedBonus, "speed-bonus", false, "award bonus points for fast guesses (env: YEARGAME_SPEED_BONUS)")
	fs.IntVar(&cfg.stealsPerGame, "steals-per-game", defaults.StealsPerGame, "steals each player may use per game (env: YEARGAME_STEALS_PER_GAME)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: YEARGAME_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: YEARGAME_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: YEARGAME_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: YEARGAME_VERSION)")
	fs.IntVar(&cfg.yearMax, "year-max", defaults.YearMax, "latest year accepted as a guess (env: YEARGAME_YEAR_MAX)")
	fs.IntVar(&cfg.yearMin, "year-min", defaults.YearMin, "earliest year accepted as a guess (env: YEARGAME_YEAR_MIN)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("yeargame v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
