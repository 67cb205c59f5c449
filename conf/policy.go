package conf

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// CleanupPolicy holds the retention windows for the two cleanup sweeps.
// Values come from a TOML file so operators can tune them without a deploy.
type CleanupPolicy struct {
	SuccessfulRetentionDays   int `toml:"successful_retention_days"`
	UnsuccessfulRetentionDays int `toml:"unsuccessful_retention_days"`
	NoResultRetentionDays     int `toml:"no_result_retention_days"`
	GitCacheRetentionDays     int `toml:"git_cache_retention_days"`

	BuildPlanSweepIntervalMinutes int `toml:"build_plan_sweep_interval_minutes"`
	GitCacheSweepIntervalMinutes  int `toml:"git_cache_sweep_interval_minutes"`
}

func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{
		SuccessfulRetentionDays:       1,
		UnsuccessfulRetentionDays:     5,
		NoResultRetentionDays:         3,
		GitCacheRetentionDays:         60,
		BuildPlanSweepIntervalMinutes: 60,
		GitCacheSweepIntervalMinutes:  24 * 60,
	}
}

// LoadCleanupPolicy reads the policy TOML at path. A missing file is not an
// error; defaults apply. Zero or negative windows fall back to defaults too,
// a sweep with a zero window would delete plans still in use.
func LoadCleanupPolicy(path string) (CleanupPolicy, error) {
	policy := DefaultCleanupPolicy()
	if path == "" {
		return policy, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return policy, nil
		}
		return policy, fmt.Errorf("failed to read cleanup policy: %w", err)
	}
	if err := toml.Unmarshal(body, &policy); err != nil {
		return policy, fmt.Errorf("failed to parse cleanup policy: %w", err)
	}
	defaults := DefaultCleanupPolicy()
	if policy.SuccessfulRetentionDays <= 0 {
		policy.SuccessfulRetentionDays = defaults.SuccessfulRetentionDays
	}
	if policy.UnsuccessfulRetentionDays <= 0 {
		policy.UnsuccessfulRetentionDays = defaults.UnsuccessfulRetentionDays
	}
	if policy.NoResultRetentionDays <= 0 {
		policy.NoResultRetentionDays = defaults.NoResultRetentionDays
	}
	if policy.GitCacheRetentionDays <= 0 {
		policy.GitCacheRetentionDays = defaults.GitCacheRetentionDays
	}
	if policy.BuildPlanSweepIntervalMinutes <= 0 {
		policy.BuildPlanSweepIntervalMinutes = defaults.BuildPlanSweepIntervalMinutes
	}
	if policy.GitCacheSweepIntervalMinutes <= 0 {
		policy.GitCacheSweepIntervalMinutes = defaults.GitCacheSweepIntervalMinutes
	}
	return policy, nil
}

func (p CleanupPolicy) SuccessfulRetention() time.Duration {
	return time.Duration(p.SuccessfulRetentionDays) * 24 * time.Hour
}

func (p CleanupPolicy) UnsuccessfulRetention() time.Duration {
	return time.Duration(p.UnsuccessfulRetentionDays) * 24 * time.Hour
}

func (p CleanupPolicy) NoResultRetention() time.Duration {
	return time.Duration(p.NoResultRetentionDays) * 24 * time.Hour
}

func (p CleanupPolicy) GitCacheRetention() time.Duration {
	return time.Duration(p.GitCacheRetentionDays) * 24 * time.Hour
}
