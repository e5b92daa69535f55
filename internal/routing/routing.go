// Package routing chooses the model tier for a turn and carries the
// project-style profile that shapes stage prompts.
package routing

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "default"

// Tier is a model size class.
type Tier string

const (
	TierFast  Tier = "fast"
	TierLarge Tier = "large"
)

func (t Tier) Valid() bool {
	return t == TierFast || t == TierLarge
}

// Profile holds routing thresholds, model names, and generation guidelines.
type Profile struct {
	Name            string            `yaml:"name"`
	Version         int               `yaml:"version"`
	Description     string            `yaml:"description"`
	Stack           string            `yaml:"stack"`
	Models          map[string]Models `yaml:"models"`
	LengthThreshold int               `yaml:"length_threshold"`
	Keywords        []string          `yaml:"keywords"`
	Guidelines      []string          `yaml:"guidelines"`
}

// Models maps tiers to backend model names.
type Models struct {
	Fast  string `yaml:"fast"`
	Large string `yaml:"large"`
}

// ModelsFor returns the model names a profile sets for one provider. A
// provider the profile does not list gets empty names, which select the
// backend's default model.
func (p *Profile) ModelsFor(provider string) Models {
	return p.Models[strings.ToLower(provider)]
}

// LoadBuiltin loads a built-in profile by name.
func LoadBuiltin(name string) (*Profile, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("routing.LoadBuiltin: unknown profile %q: %w", name, err)
	}
	return parse(name, data)
}

// Load reads a profile from a YAML file on disk.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("routing.Load: %w", err)
	}
	return parse(path, data)
}

// Resolve treats ref as a file path when it names an existing file and as a
// built-in profile name otherwise.
func Resolve(ref string) (*Profile, error) {
	if ref == "" {
		ref = DefaultProfile
	}
	if _, err := os.Stat(ref); err == nil {
		return Load(ref)
	}
	return LoadBuiltin(ref)
}

func parse(name string, data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("routing: parse %q: %w", name, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("routing: parse %q: name is required", name)
	}
	if p.LengthThreshold <= 0 {
		p.LengthThreshold = 280
	}
	return &p, nil
}

// List returns the names of all built-in profiles.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n := e.Name(); strings.HasSuffix(n, ".yaml") {
			names = append(names, strings.TrimSuffix(n, ".yaml"))
		}
	}
	return names, nil
}

// Guidance renders the profile's guidelines for inclusion in a stage prompt.
func Guidance(p *Profile) string {
	if p == nil || len(p.Guidelines) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Project Guidelines (%s)\n\n", p.Name)
	for _, g := range p.Guidelines {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	return b.String()
}

// Router picks a tier per message. It is safe for concurrent use and can be
// reconfigured while turns are running.
type Router struct {
	mu       sync.RWMutex
	profile  *Profile
	force    Tier
	keywords []string
	models   Models
}

// Override adjusts a router built from a profile.
type Override struct {
	// Force pins every turn to one tier; empty leaves the heuristic on.
	Force         string
	ExtraKeywords []string
	// Provider picks the profile's model names ("openai", "anthropic").
	Provider   string
	FastModel  string
	LargeModel string
}

// NewRouter builds a router from a profile and config overrides.
func NewRouter(p *Profile, o Override) (*Router, error) {
	r := &Router{}
	if err := r.Update(p, o); err != nil {
		return nil, err
	}
	return r, nil
}

// Update swaps the router's configuration atomically.
func (r *Router) Update(p *Profile, o Override) error {
	if p == nil {
		return fmt.Errorf("routing: nil profile")
	}
	force := Tier(strings.ToLower(strings.TrimSpace(o.Force)))
	if force != "" && !force.Valid() {
		return fmt.Errorf("routing: invalid forced tier %q", o.Force)
	}

	var kws []string
	for _, k := range append(append([]string{}, p.Keywords...), o.ExtraKeywords...) {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kws = append(kws, k)
		}
	}
	models := p.ModelsFor(o.Provider)
	if o.FastModel != "" {
		models.Fast = o.FastModel
	}
	if o.LargeModel != "" {
		models.Large = o.LargeModel
	}

	r.mu.Lock()
	r.profile = p
	r.force = force
	r.keywords = kws
	r.models = models
	r.mu.Unlock()
	return nil
}

// Profile returns the active profile.
func (r *Router) Profile() *Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profile
}

// Select returns the tier for a user message: large when the message is at
// least the profile's length threshold in runes or contains a keyword as a
// whole word (a trailing plural "s" still matches).
func (r *Router) Select(text string) Tier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.force != "" {
		return r.force
	}
	if utf8.RuneCountInString(text) >= r.profile.LengthThreshold {
		return TierLarge
	}
	lower := strings.ToLower(text)
	for _, k := range r.keywords {
		if containsWord(lower, k) {
			return TierLarge
		}
	}
	return TierFast
}

func containsWord(text, word string) bool {
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(word)
		if strings.HasPrefix(text[end:], "s") {
			if r, _ := utf8.DecodeRuneInString(text[end+1:]); end+1 == len(text) || !isWordRune(r) {
				end++
			}
		}
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Model returns the tier and the backend model name for a message. An empty
// model name means the provider's default.
func (r *Router) Model(text string) (Tier, string) {
	tier := r.Select(text)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tier == TierLarge {
		return tier, r.models.Large
	}
	return tier, r.models.Fast
}
