// Package decision loads the per-group model/scaler pairs declared in the
// model manifest and decodes raw model outputs into trade intents. The
// registry is built once at startup and never mutated afterwards.
package decision

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"alphadesk/internal/logger"
	"alphadesk/internal/observation"
	"alphadesk/internal/policy"
)

// GroupManifest is one group entry in the models manifest file.
type GroupManifest struct {
	Tickers []string `mapstructure:"tickers"`
	Model   string   `mapstructure:"model"`
	Scaler  string   `mapstructure:"scaler"`
}

type group struct {
	name    string
	tickers []string
	model   string
	policy  policy.Policy
	scaler  *observation.Scaler
}

// GroupInfo is the read-only view of a registered group.
type GroupInfo struct {
	Name      string   `json:"name"`
	Tickers   []string `json:"tickers"`
	ModelPath string   `json:"model_path"`
	Loaded    bool     `json:"loaded"`
}

// Registry holds the loaded model/scaler pair per instrument group.
type Registry struct {
	groups map[string]*group
	order  []string
}

// PolicyLoader builds the policy for one manifest entry; swapped in tests.
type PolicyLoader func(modelPath string, dim int) (policy.Policy, error)

func defaultPolicyLoader(modelPath string, dim int) (policy.Policy, error) {
	return policy.NewONNXModel(modelPath, dim)
}

// NewRegistry reads the manifest and loads every group whose model and
// scaler files exist. Groups with missing or broken artifacts are skipped
// with a warning, not fatal: the rest of the universe still trades.
func NewRegistry(manifestPath string) (*Registry, error) {
	return NewRegistryWithLoader(manifestPath, defaultPolicyLoader)
}

// NewRegistryWithLoader is NewRegistry with an injected policy loader.
func NewRegistryWithLoader(manifestPath string, load PolicyLoader) (*Registry, error) {
	v := viper.New()
	v.SetConfigFile(manifestPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read model manifest failed: %w", err)
	}

	var manifest map[string]GroupManifest
	if err := v.UnmarshalKey("groups", &manifest); err != nil {
		return nil, fmt.Errorf("parse model manifest failed: %w", err)
	}
	if len(manifest) == 0 {
		return nil, fmt.Errorf("model manifest %s declares no groups", manifestPath)
	}

	r := &Registry{groups: make(map[string]*group, len(manifest))}
	for name, entry := range manifest {
		name = strings.ToLower(strings.TrimSpace(name))
		g := &group{
			name:    name,
			tickers: normalizeTickers(entry.Tickers),
			model:   entry.Model,
		}
		r.groups[name] = g
		r.order = append(r.order, name)

		if len(g.tickers) == 0 {
			logger.Warnf("model group %s has no tickers", name)
			continue
		}
		scaler, err := loadGroupScaler(entry.Scaler)
		if err != nil {
			logger.Warnf("model group %s disabled: %v", name, err)
			continue
		}
		pol, err := load(entry.Model, scaler.Dim())
		if err != nil {
			logger.Warnf("model group %s disabled: %v", name, err)
			continue
		}
		g.scaler = scaler
		g.policy = pol
		logger.Infof("model group %s loaded: %d tickers, model=%s", name, len(g.tickers), entry.Model)
	}
	sort.Strings(r.order)
	return r, nil
}

func loadGroupScaler(path string) (*observation.Scaler, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no scaler path configured")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("scaler file missing: %w", err)
	}
	return observation.LoadScaler(path)
}

func normalizeTickers(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]bool)
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Groups returns the group names in sorted order, loaded or not.
func (r *Registry) Groups() []string {
	return append([]string(nil), r.order...)
}

// Tickers returns the instruments of a group.
func (r *Registry) Tickers(name string) []string {
	g, ok := r.groups[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return append([]string(nil), g.tickers...)
}

// Universe returns every ticker across all groups, deduplicated and sorted.
func (r *Registry) Universe() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range r.groups {
		for _, t := range g.tickers {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Ready reports whether the group has a usable model/scaler pair.
func (r *Registry) Ready(name string) bool {
	g, ok := r.groups[strings.ToLower(name)]
	return ok && g.policy != nil && g.scaler != nil
}

// Scaler returns the fitted scaler of a loaded group.
func (r *Registry) Scaler(name string) (*observation.Scaler, error) {
	g, ok := r.groups[strings.ToLower(name)]
	if !ok || g.scaler == nil {
		return nil, ErrModelUnavailable
	}
	return g.scaler, nil
}

// Info lists all registered groups for the control surface.
func (r *Registry) Info() []GroupInfo {
	out := make([]GroupInfo, 0, len(r.order))
	for _, name := range r.order {
		g := r.groups[name]
		out = append(out, GroupInfo{
			Name:      g.name,
			Tickers:   append([]string(nil), g.tickers...),
			ModelPath: g.model,
			Loaded:    g.policy != nil && g.scaler != nil,
		})
	}
	return out
}

// Decide runs the group's model on a normalized observation vector and
// decodes the output into a trade intent.
func (r *Registry) Decide(groupName, symbol string, vec []float64) (TradeIntent, error) {
	g, ok := r.groups[strings.ToLower(groupName)]
	if !ok || g.policy == nil {
		return TradeIntent{}, ErrModelUnavailable
	}

	out, err := g.policy.Predict(vec)
	if err != nil {
		return TradeIntent{}, fmt.Errorf("%w: %v", ErrDecisionFailed, err)
	}
	action, ok := actionFromClass(out.Action)
	if !ok {
		return TradeIntent{}, fmt.Errorf("%w: action class %d out of range", ErrDecisionFailed, out.Action)
	}
	if math.IsNaN(out.Size) || math.IsInf(out.Size, 0) {
		return TradeIntent{}, fmt.Errorf("%w: non-finite size", ErrDecisionFailed)
	}

	size := out.Size
	if size < 0 {
		size = 0
	} else if size > 1 {
		size = 1
	}
	return TradeIntent{
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Group:      g.name,
		Action:     action,
		Size:       size,
		Confidence: math.Abs(size),
	}, nil
}

// Close releases every loaded model.
func (r *Registry) Close() {
	for _, g := range r.groups {
		if g.policy != nil {
			g.policy.Close()
		}
	}
}
