package rbac

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// Language selects the display language for denial messages.
type Language string

const (
	English Language = "en"
	Spanish Language = "es"
)

// LanguageFromRequest picks the first supported language in Accept-Language, defaulting to English.
func LanguageFromRequest(r *http.Request) Language {
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		switch {
		case strings.HasPrefix(tag, "es"):
			return Spanish
		case strings.HasPrefix(tag, "en"):
			return English
		}
	}
	return English
}

type localized struct {
	En string `yaml:"en"`
	Es string `yaml:"es"`
}

func (l localized) in(lang Language) string {
	if lang == Spanish && l.Es != "" {
		return l.Es
	}
	return l.En
}

// Catalog maps permission keys to display text. It is read-only after load.
type Catalog struct {
	Messages struct {
		En      string `yaml:"en"`
		Es      string `yaml:"es"`
		RolesEn string `yaml:"roles_en"`
		RolesEs string `yaml:"roles_es"`
	} `yaml:"messages"`
	Resources   map[Resource]localized      `yaml:"resources"`
	Actions     map[Action]localized        `yaml:"actions"`
	Permissions map[PermissionKey]localized `yaml:"permissions"`
}

//go:embed catalog.yaml
var catalogYAML []byte

var defaultCatalog = mustLoadCatalog(catalogYAML)

// DefaultCatalog returns the process-wide catalog loaded from the embedded YAML.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// LoadCatalog parses a catalog document.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}
	if c.Messages.En == "" {
		return nil, fmt.Errorf("permission catalog is missing messages.en")
	}
	return &c, nil
}

func mustLoadCatalog(data []byte) *Catalog {
	c, err := LoadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Describe returns the display text for key, e.g. "create inventory items".
// Unknown keys fall back to the raw key string.
func (c *Catalog) Describe(lang Language, key PermissionKey) string {
	if text, ok := c.Permissions[key]; ok {
		return text.in(lang)
	}
	p, ok := key.Parse()
	if !ok {
		return string(key)
	}
	action, okAction := c.Actions[p.Action]
	resource, okResource := c.Resources[p.Resource]
	if !okAction || !okResource {
		return string(key)
	}
	return action.in(lang) + " " + resource.in(lang)
}

// Message returns the full denial message for key.
func (c *Catalog) Message(lang Language, key PermissionKey) string {
	format := c.Messages.En
	if lang == Spanish && c.Messages.Es != "" {
		format = c.Messages.Es
	}
	return fmt.Sprintf(format, c.Describe(lang, key), key)
}

// RolesMessage returns the denial message for a failed role gate.
func (c *Catalog) RolesMessage(lang Language, roles []RoleKey) string {
	format := c.Messages.RolesEn
	if lang == Spanish && c.Messages.RolesEs != "" {
		format = c.Messages.RolesEs
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return fmt.Sprintf(format, strings.Join(names, ", "))
}
