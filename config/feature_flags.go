package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollout for the
// gamification engine. Supports percentage rollout and per-learner
// overrides so new mechanics can be trialed on a slice of learners
// before everyone sees them.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	learnerOverrides map[string]map[string]bool // learnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	LearnerID string
	IsAdmin   bool
}

// Predefined feature flag names.
const (
	// === Gamification Features ===
	FeatureGamificationStreaks = "gamification.streaks" // Daily streaks
	FeatureGamificationBadges  = "gamification.badges"  // Badge unlocks
	FeatureGamificationXP      = "gamification.xp"      // XP awards

	// === Progress Features ===
	FeatureProgressDashboard = "progress.dashboard" // Per-course dashboard
	FeatureProgressLocking   = "progress.locking"   // Lock paid lessons for guests

	// === Operational Features ===
	FeatureOpsReconciliation = "ops.reconciliation" // Background re-crediting
	FeatureOpsStatsCache     = "ops.stats_cache"    // Redis read-through cache
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		learnerOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureGamificationStreaks] = &Feature{
		Name:           FeatureGamificationStreaks,
		Description:    "Daily activity streaks",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationBadges] = &Feature{
		Name:           FeatureGamificationBadges,
		Description:    "Badge unlocks for milestones",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureGamificationXP] = &Feature{
		Name:           FeatureGamificationXP,
		Description:    "XP awards for completed lessons",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressDashboard] = &Feature{
		Name:           FeatureProgressDashboard,
		Description:    "Aggregated per-course dashboard",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressLocking] = &Feature{
		Name:           FeatureProgressLocking,
		Description:    "Lock non-free lessons for anonymous visitors",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureOpsReconciliation] = &Feature{
		Name:           FeatureOpsReconciliation,
		Description:    "Background re-crediting of stalled completions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureOpsStatsCache] = &Feature{
		Name:           FeatureOpsStatsCache,
		Description:    "Redis read-through cache for learner stats",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_GAMIFICATION_BADGES=true
// Example: FEATURE_OPS_STATS_CACHE=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "gamification.badges" -> "FEATURE_GAMIFICATION_BADGES"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check learner overrides first
	if ctx != nil && ctx.LearnerID != "" {
		if overrides, ok := ff.learnerOverrides[ctx.LearnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.LearnerID != "" {
		return ff.isInRollout(ctx.LearnerID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a learner is in the rollout percentage.
// Uses consistent hashing so learners stay in their bucket.
func (ff *FeatureFlags) isInRollout(learnerID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(learnerID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// SetLearnerOverride sets a feature override for a specific learner.
func (ff *FeatureFlags) SetLearnerOverride(learnerID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.learnerOverrides[learnerID] == nil {
		ff.learnerOverrides[learnerID] = make(map[string]bool)
	}
	ff.learnerOverrides[learnerID][featureName] = enabled
}

// ClearLearnerOverrides removes all overrides for a learner.
func (ff *FeatureFlags) ClearLearnerOverrides(learnerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	delete(ff.learnerOverrides, learnerID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Message: "rollout percent must be 0-100"}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Message: "unknown feature: " + featureName}
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature turns a feature fully on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature turns a feature fully off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all features for inspection.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for name, f := range ff.features {
		copied := *f
		result[name] = &copied
	}
	return result
}

// FeatureFlagError represents a feature flag operation error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flags: %s", e.Message)
}
