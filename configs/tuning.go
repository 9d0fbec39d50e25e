package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// PollTuning controls how the polling task of one platform is retried and consumed.
type PollTuning struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Concurrency int           `yaml:"concurrency"`
}

type Tuning struct {
	Default   PollTuning            `yaml:"default"`
	Platforms map[string]PollTuning `yaml:"platforms"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Default: PollTuning{MaxAttempts: 10, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Minute},
		Platforms: map[string]PollTuning{
			// TikTok moderation routinely takes minutes and its status endpoint is rate limited.
			"tiktok":    {MaxAttempts: 30, BaseDelay: 10 * time.Second, MaxDelay: 10 * time.Minute, Concurrency: 1},
			"instagram": {MaxAttempts: 20, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Minute},
		},
	}
}

// LoadTuning reads the tuning file on top of the defaults. A missing file is not an error.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return t, nil
		}
		return t, fmt.Errorf("reading tuning file: %w", err)
	}

	var fromFile Tuning
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return t, fmt.Errorf("parsing tuning file: %w", err)
	}

	t.Default = merge(t.Default, fromFile.Default)
	for platform, pt := range fromFile.Platforms {
		base, ok := t.Platforms[platform]
		if !ok {
			base = t.Default
		}
		t.Platforms[platform] = merge(base, pt)
	}
	return t, nil
}

// For returns the tuning of platform, falling back to the default.
func (t Tuning) For(platform string) PollTuning {
	if pt, ok := t.Platforms[platform]; ok {
		return merge(t.Default, pt)
	}
	return t.Default
}

func merge(base, over PollTuning) PollTuning {
	if over.MaxAttempts > 0 {
		base.MaxAttempts = over.MaxAttempts
	}
	if over.BaseDelay > 0 {
		base.BaseDelay = over.BaseDelay
	}
	if over.MaxDelay > 0 {
		base.MaxDelay = over.MaxDelay
	}
	if over.Concurrency > 0 {
		base.Concurrency = over.Concurrency
	}
	return base
}
