package configutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/kelseyhightower/envconfig"
	"github.com/titanous/json5"
)

// localOverlayPath turns "dir/config.json5" into "dir/config.local.json5".
func localOverlayPath(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

func readJson5[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a json5 configuration file, `name` must carry its extension.
// If a sibling <name>.local.<ext> file exists, its non-zero fields override the base file.
// os.ErrNotExist is returned when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	foundBase, err := readJson5(name, &out)
	if err != nil {
		return out, err
	}

	var override T
	localPath := localOverlayPath(name)
	foundLocal, err := readJson5(localPath, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}

	if !foundBase && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadOrDefault is ReadConfig, but a missing file yields `fallback` instead of an error.
func ReadOrDefault[T any](name string, fallback T) (T, error) {
	config, err := ReadConfig[T](name)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no config file found, using defaults", "name", name)
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}
	err = mergo.Merge(&config, fallback)
	if err != nil {
		return fallback, err
	}
	return config, nil
}

// ApplyEnv overlays environment variables onto `config` following its `envconfig`
// struct tags. Fields whose variable is unset keep their current value.
func ApplyEnv(prefix string, config any) error {
	err := envconfig.Process(prefix, config)
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
