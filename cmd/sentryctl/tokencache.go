package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type tokenEntry struct {
	Host  string `json:"host"`
	Token string `json:"token"`
}

func tokenCachePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "sentryctl", "tokens.json"), nil
}

func loadTokenCache() ([]tokenEntry, error) {
	path, err := tokenCachePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []tokenEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// getCachedToken returns the cached token for host, if any.
func getCachedToken(host string) string {
	entries, err := loadTokenCache()
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.Host == host {
			return e.Token
		}
	}
	return ""
}

// saveToken remembers token for host, replacing any prior entry for it.
func saveToken(host, token string) error {
	entries, err := loadTokenCache()
	if err != nil {
		entries = nil
	}
	out := make([]tokenEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Host != host {
			out = append(out, e)
		}
	}
	out = append(out, tokenEntry{Host: host, Token: token})

	path, err := tokenCachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
