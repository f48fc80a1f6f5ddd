package selection

import (
	"time"

	"driftboard/server/logging"
)

// PerformanceMode selects a rendering-budget preset.
type PerformanceMode string

const (
	ModeLow      PerformanceMode = "low"
	ModeBalanced PerformanceMode = "balanced"
	ModeHigh     PerformanceMode = "high"
)

const (
	defaultGridCellSize    = 256.0
	defaultViewportPadding = 120.0
	defaultOwnershipTTL    = 30 * time.Second
	defaultLivenessTimeout = 10 * time.Second
)

// RenderHints carries the presentation defaults attached to visible
// selections. The engine never interprets them; they ride along for the
// rendering layer.
type RenderHints struct {
	Opacity float64 `json:"opacity"`
	Style   string  `json:"style"`
	Animate bool    `json:"animate"`
}

// Config captures the tuning constants for one session engine.
type Config struct {
	GridCellSize float64
	// ViewportPadding widens the culling region around the viewport. Nil
	// selects the default; an explicit zero disables padding.
	ViewportPadding *float64
	DefaultTTL      time.Duration
	LivenessTimeout time.Duration
	MaxVisible      int
	Mode            PerformanceMode

	// BoundsResolver supplies geometry for elements the engine has no
	// registered box for. Optional.
	BoundsResolver BoundsResolver

	Publisher logging.Publisher
}

// DefaultConfig returns the balanced-preset configuration.
func DefaultConfig() Config {
	return Config{Mode: ModeBalanced}
}

// normalized returns a config with defaults and the performance preset
// applied.
func (c Config) normalized() Config {
	normalized := c
	if normalized.GridCellSize <= 0 {
		normalized.GridCellSize = defaultGridCellSize
	}
	padding := defaultViewportPadding
	if c.ViewportPadding != nil {
		padding = *c.ViewportPadding
		if padding < 0 {
			padding = 0
		}
	}
	normalized.ViewportPadding = &padding
	if normalized.DefaultTTL <= 0 {
		normalized.DefaultTTL = defaultOwnershipTTL
	}
	if normalized.LivenessTimeout <= 0 {
		normalized.LivenessTimeout = defaultLivenessTimeout
	}
	switch normalized.Mode {
	case ModeLow, ModeBalanced, ModeHigh:
	default:
		normalized.Mode = ModeBalanced
	}
	if normalized.MaxVisible <= 0 {
		normalized.MaxVisible = maxVisibleFor(normalized.Mode)
	}
	if normalized.Publisher == nil {
		normalized.Publisher = logging.NopPublisher()
	}
	return normalized
}

func maxVisibleFor(mode PerformanceMode) int {
	switch mode {
	case ModeLow:
		return 50
	case ModeHigh:
		return 400
	default:
		return 150
	}
}

// HintsFor maps a performance preset to its rendering defaults.
func HintsFor(mode PerformanceMode) RenderHints {
	switch mode {
	case ModeLow:
		return RenderHints{Opacity: 0.8, Style: "plain", Animate: false}
	case ModeHigh:
		return RenderHints{Opacity: 1, Style: "glow", Animate: true}
	default:
		return RenderHints{Opacity: 1, Style: "solid", Animate: true}
	}
}
