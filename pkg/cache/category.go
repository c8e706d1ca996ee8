package cache

import (
	"strings"
	"time"
)

// Category classifies an endpoint for TTL and priority purposes.
type Category string

const (
	// CategoryInstallations covers installation-level data (changes rarely).
	CategoryInstallations Category = "installations"

	// CategoryGateways covers gateway metadata.
	CategoryGateways Category = "gateways"

	// CategoryDevices covers device listings and metadata.
	CategoryDevices Category = "devices"

	// CategoryFeatures covers live feature/datapoint reads (changes often).
	CategoryFeatures Category = "features"

	// CategoryCommands covers command/mutation endpoints. Never cached.
	CategoryCommands Category = "commands"
)

// TTLConfig holds the time-to-live per endpoint category.
// A TTL of zero disables caching for that category.
type TTLConfig struct {
	Installations time.Duration
	Gateways      time.Duration
	Devices       time.Duration
	Features      time.Duration
	Commands      time.Duration
}

// DefaultTTLConfig returns the default per-category TTLs.
// Installation data is the most stable, feature reads the most volatile.
func DefaultTTLConfig() TTLConfig {
	return TTLConfig{
		Installations: 24 * time.Hour,
		Gateways:      6 * time.Hour,
		Devices:       30 * time.Minute,
		Features:      2 * time.Minute,
		Commands:      0,
	}
}

// categoryFor infers the endpoint category from the path. More specific
// segments win: a features path below an installation is still a features
// read. Unknown endpoints fall into the features bucket (shortest TTL).
func categoryFor(endpoint string) Category {
	path := strings.ToLower(endpoint)
	switch {
	case strings.Contains(path, "command"):
		return CategoryCommands
	case strings.Contains(path, "features"):
		return CategoryFeatures
	case strings.Contains(path, "devices"):
		return CategoryDevices
	case strings.Contains(path, "gateways"):
		return CategoryGateways
	case strings.Contains(path, "installations"):
		return CategoryInstallations
	default:
		return CategoryFeatures
	}
}

// ttlFor returns the configured TTL for a category.
func (t TTLConfig) ttlFor(cat Category) time.Duration {
	switch cat {
	case CategoryInstallations:
		return t.Installations
	case CategoryGateways:
		return t.Gateways
	case CategoryDevices:
		return t.Devices
	case CategoryFeatures:
		return t.Features
	default:
		return t.Commands
	}
}

// Base priority by category. Installation and device scoped responses are
// the most expensive to refetch and score highest.
func basePriority(cat Category) float64 {
	switch cat {
	case CategoryInstallations:
		return 90
	case CategoryGateways:
		return 75
	case CategoryDevices:
		return 70
	case CategoryFeatures:
		return 50
	default:
		return 0
	}
}

// priorityFor computes the 0-100 priority score for an entry: the category
// base minus one point per KiB of payload, clamped.
func priorityFor(cat Category, size int) float64 {
	p := basePriority(cat) - float64(size)/1024
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
