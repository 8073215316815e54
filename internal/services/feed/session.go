package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"feedcast/internal/config"
	"feedcast/internal/services"
)

const (
	authCookieName = "auth_token"
	csrfCookieName = "ct0"
)

// Session carries the cookie values the timeline endpoints authenticate with.
type Session struct {
	AuthToken string
	CSRFToken string
}

// Valid reports whether the session carries the required auth cookie.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.AuthToken) != ""
}

// ResolveSession builds a session from explicit config tokens, falling back
// to the configured cookies file when tokens are absent.
func ResolveSession(cfg config.Feed) (Session, error) {
	session := Session{
		AuthToken: strings.TrimSpace(cfg.AuthToken),
		CSRFToken: strings.TrimSpace(cfg.CSRFToken),
	}
	if session.Valid() {
		return session, nil
	}
	if strings.TrimSpace(cfg.CookiesFile) == "" {
		return Session{}, services.Wrap(services.ErrConfiguration, "feed", "resolve session",
			"no auth token and no cookies file configured", nil)
	}
	loaded, err := LoadSessionFromCookies(cfg.CookiesFile)
	if err != nil {
		return Session{}, err
	}
	if session.CSRFToken != "" {
		loaded.CSRFToken = session.CSRFToken
	}
	return loaded, nil
}

// LoadSessionFromCookies reads a cookies JSON export. Both browser-export
// form ([{"name":..,"value":..}, ...]) and the flat map form
// ({"auth_token": "...", "ct0": "..."}) are accepted.
func LoadSessionFromCookies(path string) (Session, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Session{}, services.Wrap(services.ErrConfiguration, "feed", "load cookies",
			fmt.Sprintf("read %s", path), err)
	}

	values := map[string]string{}

	var asList []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &asList); err == nil {
		for _, cookie := range asList {
			values[cookie.Name] = cookie.Value
		}
	} else {
		var asMap map[string]string
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return Session{}, services.Wrap(services.ErrConfiguration, "feed", "load cookies",
				fmt.Sprintf("parse %s", path), err)
		}
		values = asMap
	}

	session := Session{
		AuthToken: strings.TrimSpace(values[authCookieName]),
		CSRFToken: strings.TrimSpace(values[csrfCookieName]),
	}
	if !session.Valid() {
		return Session{}, services.Wrap(services.ErrConfiguration, "feed", "load cookies",
			fmt.Sprintf("%s missing %q cookie", path, authCookieName), nil)
	}
	return session, nil
}
