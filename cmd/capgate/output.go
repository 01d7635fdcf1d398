package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"capgate/internal/domain"
)

func writeJSON(w io.Writer, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeProfile(w io.Writer, profile domain.Profile, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(profile); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(profile)
	case "json":
		return writeJSON(w, profile)
	default:
		return fmt.Errorf("unsupported format %q (valid: yaml, toml, json)", format)
	}
}

func printAuditEntries(w io.Writer, entries []domain.AuditEntry, jsonOutput bool) error {
	if jsonOutput {
		if entries == nil {
			entries = []domain.AuditEntry{}
		}
		return writeJSON(w, entries)
	}
	for _, entry := range entries {
		line := fmt.Sprintf("%s %-10s weight=%d", entry.Timestamp.UTC().Format(time.RFC3339), entry.Kind, entry.Weight)
		if len(entry.Subjects) > 0 {
			line += " " + strings.Join(entry.Subjects, ",")
		}
		if entry.RequestID != "" {
			line += " request=" + entry.RequestID
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
