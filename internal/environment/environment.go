// Package environment maps the host a response is served for onto the
// backend domains of the deployment that host belongs to.
package environment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/compactconnect/apps/edge/internal/csp"
)

// Environment is one deployment of the web app and the backends it talks to.
// Domains may be bare hostnames or https URLs.
type Environment struct {
	Name              string   `yaml:"name" json:"name"`
	WebDomain         string   `yaml:"webDomain" json:"webDomain"`
	DataAPI           string   `yaml:"dataApi" json:"dataApi"`
	Uploads           []string `yaml:"uploads" json:"uploads"`
	IdentityProviders []string `yaml:"identityProviders" json:"identityProviders"`
}

// Origins returns the environment's domains as https origins.
func (e Environment) Origins() csp.Origins {
	return csp.Origins{
		DataAPI:           Qualify(e.DataAPI),
		Uploads:           qualifyAll(e.Uploads),
		IdentityProviders: qualifyAll(e.IdentityProviders),
	}
}

// Qualify prefixes https:// unless it is already there. Blank stays blank.
func Qualify(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func qualifyAll(domains []string) []string {
	out := make([]string, len(domains))
	for i, d := range domains {
		out[i] = Qualify(d)
	}
	return out
}

// Resolution is the outcome of a host lookup.
type Resolution struct {
	Environment Environment `json:"environment"`
	Origins     csp.Origins `json:"origins"`
	// Fallback is true when the host matched nothing and the default
	// environment was used.
	Fallback bool `json:"fallback"`
}

// Table is an immutable set of environments keyed by web domain.
type Table struct {
	byDomain map[string]Environment
	names    []string
	def      Environment
}

// NewTable indexes envs by web domain. defaultName must name one of them.
func NewTable(envs []Environment, defaultName string) (*Table, error) {
	t := &Table{byDomain: make(map[string]Environment, len(envs))}
	found := false
	seenNames := make(map[string]struct{}, len(envs))
	for _, env := range envs {
		if env.Name == "" {
			return nil, fmt.Errorf("environment with web domain %q has no name", env.WebDomain)
		}
		if _, ok := seenNames[env.Name]; ok {
			return nil, fmt.Errorf("duplicate environment name %q", env.Name)
		}
		seenNames[env.Name] = struct{}{}
		if env.WebDomain == "" {
			return nil, fmt.Errorf("environment %q has no web domain", env.Name)
		}
		if other, ok := t.byDomain[env.WebDomain]; ok {
			return nil, fmt.Errorf("web domain %q used by both %q and %q", env.WebDomain, other.Name, env.Name)
		}
		t.byDomain[env.WebDomain] = env
		t.names = append(t.names, env.Name)
		if env.Name == defaultName {
			t.def = env
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("default environment %q is not configured", defaultName)
	}
	return t, nil
}

// Resolve looks host up by exact match. Unknown or empty hosts resolve to the
// default environment so a response is never held up by an odd Host header.
func (t *Table) Resolve(host string) Resolution {
	env, ok := t.byDomain[host]
	if !ok {
		env = t.def
	}
	return Resolution{Environment: env, Origins: env.Origins(), Fallback: !ok}
}

// Default returns the fallback environment.
func (t *Table) Default() Environment { return t.def }

// Environments lists all environments sorted by name.
func (t *Table) Environments() []Environment {
	out := make([]Environment, 0, len(t.byDomain))
	for _, env := range t.byDomain {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
