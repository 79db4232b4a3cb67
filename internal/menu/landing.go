package menu

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/observa-edu/observa/internal/permissions"
)

//go:embed landing.yaml
var defaultLandingYAML []byte

// Landing maps a normalized role name to its dashboard path.
type Landing map[string]string

type landingFile struct {
	Landing map[string]string `yaml:"landing"`
}

// DefaultLanding returns the built-in table.
func DefaultLanding() Landing {
	l, err := parseLanding(defaultLandingYAML)
	if err != nil {
		panic(fmt.Sprintf("menu: embedded landing table: %v", err))
	}
	return l
}

// LoadLanding returns the built-in table overlaid with the entries of the YAML file at
// path. An empty path yields the built-in table.
func LoadLanding(path string) (Landing, error) {
	l := DefaultLanding()
	if path == "" {
		return l, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("menu: read landing table: %w", err)
	}
	override, err := parseLanding(raw)
	if err != nil {
		return nil, fmt.Errorf("menu: %s: %w", path, err)
	}
	for role, p := range override {
		l[role] = p
	}
	return l, nil
}

func parseLanding(raw []byte) (Landing, error) {
	var f landingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse landing table: %w", err)
	}
	l := make(Landing, len(f.Landing))
	for role, p := range f.Landing {
		role = permissions.NormalizeRole(role)
		if role == "" || p == "" {
			return nil, fmt.Errorf("landing entry %q: role and path are required", role)
		}
		l[role] = permissions.NormalizePath(p)
	}
	return l, nil
}

// For returns the landing path of role.
func (l Landing) For(role string) (string, bool) {
	p, ok := l[permissions.NormalizeRole(role)]
	return p, ok
}
