package store

import (
	"encoding/json"
	"fmt"
	"os"

	"xtream-bridge/work/logger"
)

// seedUser is one entry of the seed file. Passwords in the seed are
// plaintext and get bcrypt-hashed before insertion.
type seedUser struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PlaylistURL   string `json:"playlist_url"`
	EPGURL        string `json:"epg_url"`
	TransportMode string `json:"transport_mode"`
	FilterInclude string `json:"filter_include"`
	FilterExclude string `json:"filter_exclude"`
	MaxConns      int    `json:"max_connections"`
}

// Seed imports accounts from a JSON file. Existing usernames are left
// untouched so the seed file can stay in place across restarts without
// clobbering password changes made through the database. A missing file is
// not an error.
func (s *Store) Seed(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var seeds []seedUser
	if err := json.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	created := 0
	for _, su := range seeds {
		if su.Username == "" || su.Password == "" {
			logger.Warn("skipping seed entry with empty username or password")
			continue
		}

		existing, err := s.GetUser(su.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		hashed, err := HashPassword(su.Password)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", su.Username, err)
		}

		u := &User{
			Username:      su.Username,
			Password:      hashed,
			PlaylistURL:   su.PlaylistURL,
			EPGURL:        su.EPGURL,
			TransportMode: su.TransportMode,
			FilterInclude: su.FilterInclude,
			FilterExclude: su.FilterExclude,
			MaxConns:      su.MaxConns,
			Enabled:       true,
		}
		if u.TransportMode != ModeProxy {
			u.TransportMode = ModeRedirect
		}
		if err := s.CreateUser(u); err != nil {
			return err
		}
		created++
	}

	if created > 0 {
		logger.Info("seeded %d user(s) from %s", created, path)
	}
	return nil
}
