package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/onnwee/chat-tender/backend/activity"
	"github.com/onnwee/chat-tender/backend/cluster"
	"github.com/onnwee/chat-tender/backend/vocab"
)

// DefaultMinCount is the per (word, transcript) count a vocabulary cell must exceed.
const DefaultMinCount = 10

// Analysis is the analysis file, in YAML or TOML.
//
//	granularity: 30s
//	ignore_case: true
//	fill_gaps: true
//	min_count: 10
//	scaling: zscore
//	patterns:
//	  - name: laugh
//	    pattern: "lol|lmao|KEKW"
//	emote_dirs: [emotes/global, emotes/channel]
//	extensions: [.png, .gif]
//	blacklist: [LUL]
type Analysis struct {
	Granularity string                 `yaml:"granularity,omitempty" toml:"granularity,omitempty" jsonschema:"description=Bucket width: s/min/h/d or a duration like 30s"`
	IgnoreCase  bool                   `yaml:"ignore_case,omitempty" toml:"ignore_case,omitempty" jsonschema:"description=Match patterns case-insensitively"`
	FillGaps    *bool                  `yaml:"fill_gaps,omitempty" toml:"fill_gaps,omitempty" jsonschema:"description=Emit zero-count buckets between the first and last bucket (default: true)"`
	MinCount    *int                   `yaml:"min_count,omitempty" toml:"min_count,omitempty" jsonschema:"minimum=0,description=A vocabulary cell is kept when its count exceeds this (default: 10)"`
	Scaling     string                 `yaml:"scaling,omitempty" toml:"scaling,omitempty" jsonschema:"description=Row scaling before clustering: zscore or minmax or none"`
	Patterns    []activity.PatternSpec `yaml:"patterns,omitempty" toml:"patterns,omitempty" jsonschema:"description=Named patterns counted per bucket in order"`
	EmoteDirs   []string               `yaml:"emote_dirs,omitempty" toml:"emote_dirs,omitempty" jsonschema:"description=Directories of base64-named emote images"`
	Extensions  []string               `yaml:"extensions,omitempty" toml:"extensions,omitempty" jsonschema:"description=Emote file extensions to keep"`
	Blacklist   []string               `yaml:"blacklist,omitempty" toml:"blacklist,omitempty" jsonschema:"description=Emote names or file names to ignore"`
	Clusters    int                    `yaml:"clusters,omitempty" toml:"clusters,omitempty" jsonschema:"minimum=0,description=Number of flat clusters to cut; 0 keeps the tree only"`
}

// DefaultAnalysis returns the settings used when no file is given.
func DefaultAnalysis() *Analysis {
	fill := true
	minCount := DefaultMinCount
	return &Analysis{Granularity: "min", FillGaps: &fill, MinCount: &minCount}
}

// LoadAnalysis reads path over DefaultAnalysis. An empty path returns the defaults.
func LoadAnalysis(path string) (*Analysis, error) {
	a := DefaultAnalysis()
	if path == "" {
		return a, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analysis config: %w", err)
	}
	unmarshal := yaml.Unmarshal
	if isTOML(path) {
		unmarshal = toml.Unmarshal
	}
	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse analysis config %s: %w", path, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, fmt.Errorf("analysis config %s: %w", path, err)
	}
	if err := unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("parse analysis config %s: %w", path, err)
	}
	if a.FillGaps == nil {
		a.FillGaps = DefaultAnalysis().FillGaps
	}
	if a.MinCount == nil {
		a.MinCount = DefaultAnalysis().MinCount
	}
	if _, err := a.Validate(); err != nil {
		return nil, fmt.Errorf("analysis config %s: %w", path, err)
	}
	return a, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Resolved is an Analysis with every field parsed.
type Resolved struct {
	Granularity time.Duration
	Patterns    []activity.Pattern
	FillGaps    bool
	MinCount    int
	Scaling     cluster.Scaling
	DirOptions  vocab.DirOptions
	EmoteDirs   []string
	Clusters    int
}

// Validate parses every field and reports the first invalid one.
func (a *Analysis) Validate() (*Resolved, error) {
	g, err := activity.ParseGranularity(a.Granularity)
	if err != nil {
		return nil, fmt.Errorf("granularity: %w", err)
	}
	pats, err := activity.CompilePatterns(a.Patterns, a.IgnoreCase)
	if err != nil {
		return nil, fmt.Errorf("patterns: %w", err)
	}
	sc, err := cluster.ParseScaling(a.Scaling)
	if err != nil {
		return nil, err
	}
	r := &Resolved{
		Granularity: g,
		Patterns:    pats,
		FillGaps:    a.FillGaps == nil || *a.FillGaps,
		MinCount:    DefaultMinCount,
		Scaling:     sc,
		DirOptions:  vocab.DirOptions{Extensions: a.Extensions, Blacklist: vocab.NewBlacklist(a.Blacklist...)},
		EmoteDirs:   a.EmoteDirs,
		Clusters:    a.Clusters,
	}
	if a.MinCount != nil {
		if *a.MinCount < 0 {
			return nil, fmt.Errorf("min_count must be >= 0, got %d", *a.MinCount)
		}
		r.MinCount = *a.MinCount
	}
	if a.Clusters < 0 {
		return nil, fmt.Errorf("clusters must be >= 0, got %d", a.Clusters)
	}
	return r, nil
}
