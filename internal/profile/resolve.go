package profile

import (
	"os"

	"github.com/matheus3301/chatdesk/internal/config"
)

const (
	DefaultName = "main"
	// EnvProfile selects the profile when no flag is given.
	EnvProfile = "CHATDESK_PROFILE"
)

// Resolve picks the profile name. An explicit --profile wins, then
// $CHATDESK_PROFILE, then default_profile from the config under BaseDir.
// A configured default that is not a valid name is ignored.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if name := os.Getenv(EnvProfile); name != "" {
		return name
	}
	cfg, err := config.Load(ConfigPath())
	if err != nil || cfg.DefaultProfile == "" || ValidateName(cfg.DefaultProfile) != nil {
		return DefaultName
	}
	return cfg.DefaultProfile
}
