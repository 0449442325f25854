// Package config resolves application settings from Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/calwatch/warchest/internal/identity"
	"github.com/calwatch/warchest/internal/model"
	"github.com/calwatch/warchest/internal/normalize"
)

// Settings is the application configuration resolved from Viper.
type Settings struct {
	DatabasePath string
	BatchSize    int
	Parallelism  int
	CacheTTL     time.Duration
	CutoverMonth time.Month
	Nicknames    identity.Nicknames
	Sources      normalize.Config
}

// LoadSettings resolves application settings from Viper configuration.
// Everything jurisdiction-specific lives here: date formats, the nickname
// table, and the election calendar are configuration, not hardcoded law.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		DatabasePath: ExpandPath(viper.GetString("database.path")),
		BatchSize:    viper.GetInt("import.batch_size"),
		Parallelism:  viper.GetInt("import.parallelism"),
		CacheTTL:     viper.GetDuration("cache.ttl"),
		CutoverMonth: time.November,
		Nicknames:    identity.Nicknames{},
		Sources:      normalize.Config{},
	}
	if s.DatabasePath == "" {
		s.DatabasePath = ExpandPath("~/.local/share/warchest/warchest.db")
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 200
	}
	if s.Parallelism <= 0 {
		s.Parallelism = 4
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = 15 * time.Minute
	}

	if month := viper.GetInt("identity.cutover_month"); month != 0 {
		if month < 1 || month > 12 {
			return nil, fmt.Errorf("identity.cutover_month %d is out of range", month)
		}
		s.CutoverMonth = time.Month(month)
	}

	for canonical, equivalents := range viper.GetStringMapStringSlice("identity.nicknames") {
		s.Nicknames[canonical] = equivalents
	}

	for _, schema := range normalize.Schemas() {
		key := "sources." + string(schema)
		if !viper.IsSet(key) {
			continue
		}
		s.Sources[schema] = normalize.SourceConfig{
			DateFormats:       viper.GetStringSlice(key + ".date_formats"),
			TwoDigitYearPivot: viper.GetBool(key + ".two_digit_year_pivot"),
		}
	}
	applySourceDefaults(s.Sources)

	return s, nil
}

// applySourceDefaults fills in parsing rules for schemas the config file
// does not mention.
func applySourceDefaults(sources normalize.Config) {
	defaults := map[model.SourceSchema]normalize.SourceConfig{
		normalize.SchemaSOSEntities:     {DateFormats: []string{"01/02/2006"}},
		normalize.SchemaSOSCommittees:   {DateFormats: []string{"01/02/2006"}, TwoDigitYearPivot: true},
		normalize.SchemaSOSTransactions: {DateFormats: []string{"01/02/2006", "01/02/06"}, TwoDigitYearPivot: true},
		normalize.SchemaPortalCSV:       {DateFormats: []string{"2006-01-02"}},
	}
	for schema, cfg := range defaults {
		if _, ok := sources[schema]; !ok {
			sources[schema] = cfg
		}
	}
}

// Calendar returns the election calendar the cycle inference uses.
func (s *Settings) Calendar() identity.Calendar {
	return identity.Calendar{CutoverMonth: s.CutoverMonth}
}

// ExpandPath resolves a leading ~ to the user's home directory and
// expands $VAR references, so config files can say
// ~/.local/share/warchest/warchest.db.
func ExpandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return os.ExpandEnv(path)
}
