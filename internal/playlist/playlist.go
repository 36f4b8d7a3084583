/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package playlist reads song lists from YAML files.
package playlist

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Seednode/yeargame/internal/game"
)

type file struct {
	Songs []game.Song `yaml:"songs"`
}

// Load reads every path in order and returns the usable songs. Entries
// without a uri or with a non-positive year are skipped, as are uris
// already seen in an earlier entry or file.
func Load(paths ...string) ([]game.Song, error) {
	seen := make(map[string]bool)

	var songs []game.Song

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read playlist %s: %w", path, err)
		}

		parsed, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse playlist %s: %w", path, err)
		}

		for i, s := range parsed {
			switch {
			case s.URI == "":
				log.Warn().Str("playlist", path).Int("entry", i).Msg("skipping song without uri")
				continue
			case s.Year <= 0:
				log.Warn().Str("playlist", path).Str("uri", s.URI).Int("year", s.Year).Msg("skipping song with invalid year")
				continue
			case seen[s.URI]:
				log.Debug().Str("playlist", path).Str("uri", s.URI).Msg("skipping duplicate song")
				continue
			}

			seen[s.URI] = true
			songs = append(songs, s)
		}

		log.Info().Str("playlist", path).Int("songs", len(parsed)).Msg("loaded playlist")
	}

	return songs, nil
}

// Parse decodes a single playlist document without validating entries.
func Parse(data []byte) ([]game.Song, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	return f.Songs, nil
}
