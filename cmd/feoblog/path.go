package main

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

const dataDirPerm = 0700

// expandPath resolves a leading "~" to the user's home directory and
// cleans the result. Adapted from the teacher's fileutil.ExpandPath,
// trimmed to the tilde/clean behavior this CLI needs.
func expandPath(p string) (string, error) {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Abs(path.Clean(os.ExpandEnv(p)))
}

// ensureDataDir expands dir and creates it (and any parents) if absent.
func ensureDataDir(dir string) (string, error) {
	expanded, err := expandPath(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, dataDirPerm); err != nil {
		return "", err
	}
	return expanded, nil
}
