package config

import (
	"os"
	"strings"
)

// normalize expands paths and applies environment fallbacks for secrets so
// deployments can keep keys out of the config file.
func (c *Config) normalize() error {
	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return err
	}
	if c.Paths.ClipDir, err = expandPath(c.Paths.ClipDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.CredentialDir, err = expandPath(c.Paths.CredentialDir); err != nil {
		return err
	}
	if c.Retrieval.SharedCookieFile != "" {
		if c.Retrieval.SharedCookieFile, err = expandPath(c.Retrieval.SharedCookieFile); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Services.OpenAIAPIKey) == "" {
		c.Services.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if strings.TrimSpace(c.VideoData.APIKey) == "" {
		c.VideoData.APIKey = strings.TrimSpace(os.Getenv("VIDEO_DATA_API_KEY"))
	}

	c.Jobs.Store = strings.ToLower(strings.TrimSpace(c.Jobs.Store))
	if c.Jobs.Store == "" {
		c.Jobs.Store = defaultJobStore
	}
	return nil
}
