package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/adrg/xdg"
	"github.com/titanous/json5"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "eaipviewer"

// LocalVariant returns the override path for a config file,
// "dir/config.json5" becomes "dir/config.local.json5".
func LocalVariant(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// decodeFile reports found=false when the file is missing or empty.
func decodeFile[T any](path string) (out T, found bool, err error) {
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(contents))) == 0 {
		return out, false, nil
	}
	if err := json5.Unmarshal(contents, &out); err != nil {
		return out, false, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig reads the json5 file at path and merges the values of its
// ".local" variant over it. Returns os.ErrNotExist when neither exists.
func ReadConfig[T any](path string) (T, error) {
	base, baseFound, err := decodeFile[T](path)
	if err != nil {
		return base, err
	}

	local := LocalVariant(path)
	override, localFound, err := decodeFile[T](local)
	if err != nil {
		return base, err
	}

	switch {
	case !baseFound && !localFound:
		return base, os.ErrNotExist
	case localFound:
		if err := mergo.Merge(&base, override, mergo.WithOverride); err != nil {
			return base, fmt.Errorf("merge %s: %w", local, err)
		}
		slog.Debug("merged local config overrides", "local", local)
	}
	return base, nil
}

// ReadRecursively walks from the working directory towards the filesystem
// root and returns the first config named `name` it finds.
func ReadRecursively[T any](name string) (T, error) {
	var out T
	current, err := os.Getwd()
	if err != nil {
		return out, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return out, err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return out, os.ErrNotExist
		}
		current = parent
	}
}

// ReadFirst tries each directory in order and returns the first config named
// `name` along with the path it was read from.
func ReadFirst[T any](name string, dirs ...string) (T, string, error) {
	var out T
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		config, err := ReadConfig[T](path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return out, path, err
		}
		return config, path, nil
	}
	return out, "", os.ErrNotExist
}

// ConfigDir is $XDG_CONFIG_HOME/eaipviewer.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataDir is $XDG_DATA_HOME/eaipviewer.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
