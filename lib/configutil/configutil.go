// Package configutil loads json5 configuration files with an optional
// `.local` overlay that overrides the checked-in defaults.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localPath turns "dir/config.json5" into "dir/config.local.json5".
func localPath(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(
		filepath.Dir(name),
		fmt.Sprintf("%s.local%s", stem, ext),
	)
}

// readLayer unmarshals one config file into out. It reports whether the
// file existed, missing files are not an error.
func readLayer(path string, out any) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	return true, json5.Unmarshal(raw, out)
}

// ReadConfig loads <name> and then merges its `.local` sibling over it,
// so deployments can keep credentials out of the committed file. Returns
// os.ErrNotExist when neither file is present.
func ReadConfig[T any](name string) (T, error) {
	var config T

	found, err := readLayer(name, &config)
	if err != nil {
		return config, err
	}

	var overlay T
	overlayPath := localPath(name)
	overlayFound, err := readLayer(overlayPath, &overlay)
	if err != nil {
		return config, err
	}
	if overlayFound {
		err = mergo.Merge(&config, overlay, mergo.WithOverride)
		if err != nil {
			return config, err
		}
		slog.Info("applied local config overrides", "path", overlayPath)
	}

	if !found && !overlayFound {
		return config, os.ErrNotExist
	}
	return config, nil
}

// ReadRecursively walks from the working directory up to the filesystem
// root looking for a config matching name, so commands run from anywhere
// inside the checkout still find it.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	root, err := filepath.Abs("/")
	if err != nil {
		return zero, err
	}
	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Dir(current)
			continue
		}
		if err != nil {
			return zero, err
		}
		return config, nil
	}

	return zero, os.ErrNotExist
}
