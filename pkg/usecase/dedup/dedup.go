package dedup

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/miru/pkg/repository"
	"github.com/m-mizutani/miru/pkg/similarity"
	"gopkg.in/yaml.v3"
)

// Weights are the per-field contributions to an item pair score. They must
// sum to 1.0 so the weighted sum stays in [0,1].
type Weights struct {
	Name        float64 `yaml:"name"`
	Location    float64 `yaml:"location"`
	Color       float64 `yaml:"color"`
	Description float64 `yaml:"description"`
}

// Config holds the tuning knobs of the duplicate engine
type Config struct {
	// DuplicateThreshold is the document score above which two records are
	// treated as redundant and the older one is deleted.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`

	// MatchThreshold is the per-item best score at or above which an item
	// counts as matched in the match-ratio reduction.
	MatchThreshold float64 `yaml:"match_threshold"`

	// PrefilterThreshold is the cheap lexical score above which a record
	// enters the full comparison during Purge.
	PrefilterThreshold float64 `yaml:"prefilter_threshold"`

	// RecentLimit is how many recent records are scored on insert
	RecentLimit int `yaml:"recent_limit"`

	Weights Weights `yaml:"weights"`
}

// DefaultConfig returns the tuning used in production
func DefaultConfig() Config {
	return Config{
		DuplicateThreshold: 0.7,
		MatchThreshold:     0.75,
		PrefilterThreshold: 0.1,
		RecentLimit:        5,
		Weights: Weights{
			Name:        0.4,
			Location:    0.2,
			Color:       0.2,
			Description: 0.2,
		},
	}
}

// LoadConfig reads a YAML tuning file. Fields left unset in the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, goerr.Wrap(err, "failed to read tuning file", goerr.Value("path", path))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, goerr.Wrap(err, "failed to parse tuning file", goerr.Value("path", path))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that thresholds are in range and weights sum to 1.0
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"duplicate_threshold": c.DuplicateThreshold,
		"match_threshold":     c.MatchThreshold,
		"prefilter_threshold": c.PrefilterThreshold,
	} {
		if v < 0 || v > 1 {
			return goerr.New("threshold out of range", goerr.Value("name", name), goerr.Value("value", v))
		}
	}
	if c.RecentLimit <= 0 {
		return goerr.New("recent_limit must be positive", goerr.Value("value", c.RecentLimit))
	}

	sum := c.Weights.Name + c.Weights.Location + c.Weights.Color + c.Weights.Description
	if sum < 0.999 || sum > 1.001 {
		return goerr.New("weights must sum to 1.0", goerr.Value("sum", sum))
	}
	return nil
}

// Engine decides whether a newly captured visual record is a near-duplicate
// of a temporally nearby record of the same user, and suppresses the older
// one when it is.
type Engine struct {
	repo     repository.Repository
	semantic *similarity.Semantic
	cfg      Config
}

// Option is a functional option for Engine
type Option func(*Engine)

// WithConfig overrides the default tuning
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// New creates a duplicate engine on top of a repository and an embedder
func New(repo repository.Repository, embedder similarity.Embedder, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		semantic: similarity.NewSemantic(embedder),
		cfg:      DefaultConfig(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}
