package feed

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"feedcast/internal/services"
)

// Timeline kinds supported by the syndication endpoints.
const (
	KindHome   = "home"
	KindUser   = "user"
	KindSearch = "search"
)

// SourceDef names one timeline to collect from.
type SourceDef struct {
	Kind  string `yaml:"kind"`
	User  string `yaml:"user,omitempty"`
	Query string `yaml:"query,omitempty"`
}

// Label returns a short human-readable name for logging.
func (d SourceDef) Label() string {
	switch d.Kind {
	case KindUser:
		return "user:" + d.User
	case KindSearch:
		return "search:" + d.Query
	default:
		return KindHome
	}
}

// path returns the request path and query for this timeline.
func (d SourceDef) path() (string, url.Values, error) {
	switch d.Kind {
	case KindHome, "":
		return "/timeline/home", url.Values{}, nil
	case KindUser:
		if d.User == "" {
			return "", nil, fmt.Errorf("user timeline requires a user name")
		}
		return "/timeline/user/" + url.PathEscape(d.User), url.Values{}, nil
	case KindSearch:
		if d.Query == "" {
			return "", nil, fmt.Errorf("search timeline requires a query")
		}
		return "/timeline/search", url.Values{"q": {d.Query}}, nil
	default:
		return "", nil, fmt.Errorf("unknown timeline kind %q", d.Kind)
	}
}

type sourcesFile struct {
	Sources []SourceDef `yaml:"sources"`
}

// LoadSources reads the optional YAML sources file. An empty path yields the
// default home timeline alone.
func LoadSources(path string) ([]SourceDef, error) {
	if strings.TrimSpace(path) == "" {
		return []SourceDef{{Kind: KindHome}}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "feed", "load sources",
			fmt.Sprintf("read %s", path), err)
	}
	var parsed sourcesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "feed", "load sources",
			fmt.Sprintf("parse %s", path), err)
	}
	if len(parsed.Sources) == 0 {
		return []SourceDef{{Kind: KindHome}}, nil
	}
	for _, def := range parsed.Sources {
		if _, _, err := def.path(); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "feed", "load sources",
				fmt.Sprintf("invalid source %s", def.Label()), err)
		}
	}
	return parsed.Sources, nil
}
