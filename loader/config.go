/*
 *
 * shadowfold - a self-hiding layered resource resolver
 * Copyright (C) 2026 The shadowfold Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package loader

import (
	"os"
	"strings"

	"github.com/mstoykov/envconfig"
	"gopkg.in/guregu/null.v3"
)

// Config holds the environment-driven part of a loader's setup. Development
// builds use it to swap loose override locations in place of the bundled
// versions without repackaging.
type Config struct {
	// Suffix is the deployment's shadow suffix.
	Suffix null.String `json:"suffix" envconfig:"SHADOWFOLD_SUFFIX"`
	// Overrides is a path-list of override locations, see ParseOverrideList.
	Overrides null.String `json:"overrides" envconfig:"SHADOWFOLD_OVERRIDE"`
}

// NewConfig returns a Config with default values.
func NewConfig() Config {
	return Config{}
}

// Apply overlays the set fields of cfg on top of c and returns the result.
func (c Config) Apply(cfg Config) Config {
	if cfg.Suffix.Valid {
		c.Suffix = cfg.Suffix
	}
	if cfg.Overrides.Valid {
		c.Overrides = cfg.Overrides
	}
	return c
}

// GetConsolidatedConfig reads the loader config from the given environment.
// Besides the generic SHADOWFOLD_OVERRIDE, a deployment with a known shadow
// suffix honors the suffix-keyed SHADOWFOLD_OVERRIDE_<SUFFIX>, which wins
// over the generic one.
func GetConsolidatedConfig(suffix string, lookupEnv func(key string) (string, bool)) (Config, error) {
	result := NewConfig()

	envConfig := Config{}
	if err := envconfig.Process("", &envConfig, lookupEnv); err != nil {
		return result, err
	}
	result = result.Apply(envConfig)

	if suffix != "" {
		key := "SHADOWFOLD_OVERRIDE_" + strings.ToUpper(suffix)
		if v, ok := lookupEnv(key); ok && v != "" {
			result.Overrides = null.StringFrom(v)
		}
	}
	if !result.Suffix.Valid && suffix != "" {
		result.Suffix = null.NewString(suffix, false)
	}
	return result, nil
}

// OverrideEntry is one parsed element of an override path list.
type OverrideEntry struct {
	Path string
	// ExpandDir is set for "dir/*" entries: the directory itself is not an
	// override location, the archives directly inside it are.
	ExpandDir bool
}

// ParseOverrideList splits an override path list on the OS path list
// separator, trimming whitespace around separators and dropping empty
// elements.
func ParseOverrideList(raw string) []OverrideEntry {
	var entries []OverrideEntry
	for _, part := range strings.Split(raw, string(os.PathListSeparator)) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasSuffix(part, "/*") || strings.HasSuffix(part, `\*`) {
			entries = append(entries, OverrideEntry{Path: part[:len(part)-2], ExpandDir: true})
			continue
		}
		entries = append(entries, OverrideEntry{Path: part})
	}
	return entries
}

// ApplyOverrides feeds parsed override entries into the loader, expanding
// directory entries into their archive members.
func (l *Loader) ApplyOverrides(entries []OverrideEntry) error {
	for _, e := range entries {
		if e.ExpandDir {
			if err := l.AddOverrideDir(e.Path); err != nil {
				return err
			}
			continue
		}
		l.AddOverridePath(e.Path)
	}
	return nil
}
