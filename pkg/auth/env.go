package auth

import (
	"context"
	"os"
	"sort"
)

// platformEnvVars maps platform names to env var name → cookie name.
var platformEnvVars = map[string]map[string]string{
	"instagram": {
		"INSTAGRAM_SESSIONID": "sessionid",
		"INSTAGRAM_CSRFTOKEN": "csrftoken",
	},
	"tiktok": {
		"TIKTOK_SESSIONID": "sessionid",
		"TIKTOK_TTWID":     "ttwid",
	},
	"youtube": {
		"YOUTUBE_CONSENT": "CONSENT",
		"YOUTUBE_SOCS":    "SOCS",
	},
}

// EnvSource reads cookies from environment variables.
type EnvSource struct{}

// Cookies returns cookies for the given platform from environment variables.
func (EnvSource) Cookies(_ context.Context, platform string) (map[string]string, error) {
	envMap, ok := platformEnvVars[platform]
	if !ok {
		return nil, nil //nolint:nilnil // no cookies for unknown platform is not an error
	}

	cookies := make(map[string]string)
	for envVar, cookieName := range envMap {
		if value := os.Getenv(envVar); value != "" {
			cookies[cookieName] = value
		}
	}

	if len(cookies) == 0 {
		return nil, nil //nolint:nilnil // no env vars set is not an error
	}
	return cookies, nil
}

// EnvVarsForPlatform returns the environment variable names for a platform, sorted.
func EnvVarsForPlatform(platform string) []string {
	envMap, ok := platformEnvVars[platform]
	if !ok {
		return nil
	}

	vars := make([]string, 0, len(envMap))
	for envVar := range envMap {
		vars = append(vars, envVar)
	}
	sort.Strings(vars)
	return vars
}
