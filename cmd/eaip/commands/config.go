package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"eaipviewer/internal/eaip"
	"eaipviewer/lib/configutil"

	"github.com/tcnksm/go-input"
)

type AccountConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OutputConfig struct {
	// newline separated `name: url` list
	Locators string `json:"locators"`
	// where the captcha image is saved for the operator
	Captcha string `json:"captcha"`
}

type HistoryConfig struct {
	File     string `json:"file"`
	Disabled bool   `json:"disabled"`
}

type Config struct {
	Account            AccountConfig `json:"account"`
	Proxy              string        `json:"proxy"`
	BaseUrl            string        `json:"base_url"`
	InsecureSkipVerify bool          `json:"insecure_skip_verify"`
	BrowserTransport   bool          `json:"browser_transport"`
	RequestsPerSecond  float64       `json:"requests_per_second"`
	Output             OutputConfig  `json:"output"`
	History            HistoryConfig `json:"history"`
}

const configName = "config.json5"

func (c *Config) applyDefaults() {
	if c.BaseUrl == "" {
		c.BaseUrl = eaip.DefaultBaseUrl
	}
	c.BaseUrl = strings.TrimRight(c.BaseUrl, "/")
	if c.Output.Locators == "" {
		c.Output.Locators = "pdf_paths.txt"
	}
	if c.Output.Captcha == "" {
		c.Output.Captcha = "captcha.jpg"
	}
	if c.History.File == "" {
		c.History.File = filepath.Join(configutil.DataDir(), "history.db")
	}
}

// loadConfig reads the config at path, or when path is empty the first
// config.json5 found in the working directory or the user config directory.
// No config at all is not an error.
func loadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		cfg, err = configutil.ReadConfig[Config](path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	} else {
		cfg, path, err = configutil.ReadFirst[Config](configName, ".", configutil.ConfigDir())
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("no config file found, using defaults")
		} else if err != nil {
			return Config{}, err
		} else {
			slog.Debug("loaded config", "path", path)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// promptCredentials asks for whatever part of the account the config left
// out.
func promptCredentials(ui *input.UI, account *AccountConfig) error {
	var err error
	if account.Username == "" {
		account.Username, err = ui.Ask("eaip username:", &input.Options{
			Required:  true,
			Loop:      true,
			HideOrder: true,
		})
		if err != nil {
			return err
		}
	}
	if account.Password == "" {
		account.Password, err = ui.Ask("eaip password:", &input.Options{
			Required:  true,
			Loop:      true,
			HideOrder: true,
			Mask:      true,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
