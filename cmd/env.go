package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/notsingle/internal/config"
)

// ConfigCheckResult holds the result of configuration validation
type ConfigCheckResult struct {
	Missing  []string          // Required settings that are missing
	Present  map[string]string // Settings that are set (secrets masked)
	Warnings []string          // Non-fatal warnings
}

// CheckRequiredConfig reports which settings needed by `serve` are present
func CheckRequiredConfig(cfg *config.Config) *ConfigCheckResult {
	result := &ConfigCheckResult{
		Missing:  []string{},
		Present:  make(map[string]string),
		Warnings: []string{},
	}

	secrets := map[string]string{
		"database.url":    cfg.Database.URL,
		"api.cron_secret": cfg.API.CronSecret,
		"api.jwt_secret":  cfg.API.JWTSecret,
	}
	for k, v := range secrets {
		if strings.TrimSpace(v) == "" {
			result.Missing = append(result.Missing, k)
		} else {
			result.Present[k] = maskSecret(v)
		}
	}
	sort.Strings(result.Missing)

	result.Present["llm.models"] = strings.Join(cfg.LLM.Models, ",")
	result.Present["schedule.cron"] = cfg.Schedule.Cron
	result.Present["api.port"] = fmt.Sprint(cfg.API.Port)

	if cfg.LLM.RequestsPerSecond == 0 {
		result.Warnings = append(result.Warnings, "llm.requests_per_second is 0: model calls are not rate limited")
	}
	if cfg.Batch.MaxWorkers == 0 {
		result.Warnings = append(result.Warnings, "batch.max_workers is 0: every awake persona runs concurrently")
	}
	return result
}

// PrintConfigCheck prints the configuration check results
func PrintConfigCheck(result *ConfigCheckResult) {
	fmt.Println("=== Configuration Check ===")
	fmt.Println("")

	if len(result.Missing) > 0 {
		fmt.Println("❌ Missing required settings:")
		for _, v := range result.Missing {
			fmt.Printf("   - %s\n", v)
		}
		fmt.Println("")
	}

	if len(result.Present) > 0 {
		keys := make([]string, 0, len(result.Present))
		for k := range result.Present {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("✓ Configured settings:")
		for _, k := range keys {
			fmt.Printf("   - %s = %s\n", k, result.Present[k])
		}
		fmt.Println("")
	}

	for _, w := range result.Warnings {
		fmt.Printf("⚠ Warning: %s\n", w)
	}

	if len(result.Missing) == 0 {
		fmt.Println("✓ All required configuration is present")
	}

	fmt.Println("============================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
