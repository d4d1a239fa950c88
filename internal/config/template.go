package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

const TemplateFile = "config.yaml"

func GenerateTemplateConfig(writeToFile bool) (Config, error) {
	cfg := Config{
		LogLevel: "info",

		Settings: Settings{
			RewriteMode:    DefaultRewriteMode,
			NitterInstance: DefaultNitterInstance,
			CustomRewrites: []Rule{
				{
					Name:        "Nitter via placeholder",
					Pattern:     "https://{domain}",
					Replacement: "https://nitter.net",
					Enabled:     false,
				},
				{
					Name:        "Drop share tracking",
					Pattern:     "/[?&](s|t)=[^&#]*/g",
					Replacement: "",
					Enabled:     false,
				},
			},
		},

		MatchTimeout:  DefaultMatchTimeout,
		WatchInterval: DefaultWatchInterval,
		StripQuery:    false,

		Store: StoreConfig{
			Backend: StoreBackendFile,
		},
		API: APIConfig{
			Listen: DefaultAPIListen,
		},
		Stats: StatsConfig{
			Enabled: true,
		},
	}

	if writeToFile {
		data, err := yaml.Marshal(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to marshal template config to YAML: %w", err)
		}
		if err := os.WriteFile(TemplateFile, data, 0644); err != nil {
			return Config{}, fmt.Errorf("failed to write template config to file: %w", err)
		}
	}
	return cfg, nil
}
