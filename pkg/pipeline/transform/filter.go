package transform

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// FilterConfig drops records that don't match. A record passes only if it
// passes every configured criterion.
type FilterConfig struct {
	KeyPattern  string   `json:"keyPattern,omitempty" mapstructure:"keyPattern"`
	Keys        []string `json:"keys,omitempty" mapstructure:"keys"`
	ExcludeKeys []string `json:"excludeKeys,omitempty" mapstructure:"excludeKeys"`
	// Headers lists header keys a record must carry.
	Headers []string `json:"headers,omitempty" mapstructure:"headers"`
	// DropTombstones drops records without a value.
	DropTombstones bool `json:"dropTombstones,omitempty" mapstructure:"dropTombstones"`
}

func (c *FilterConfig) Validate() error {
	if len(c.Keys) == 0 && len(c.ExcludeKeys) == 0 &&
		c.KeyPattern == "" && len(c.Headers) == 0 && !c.DropTombstones {
		return fmt.Errorf("at least one filter criteria required")
	}

	if c.KeyPattern != "" {
		if _, err := regexp.Compile(c.KeyPattern); err != nil {
			return fmt.Errorf("invalid key pattern: %w", err)
		}
	}

	for _, glob := range append(append([]string{}, c.Keys...), c.ExcludeKeys...) {
		if _, err := filepath.Match(glob, ""); err != nil {
			return fmt.Errorf("invalid key glob %q: %w", glob, err)
		}
	}

	return nil
}

func (c *FilterConfig) Type() string {
	return TypeFilter
}

// Filter creates a Func that forwards matching records unchanged and emits
// nothing for the rest.
func Filter(config *FilterConfig) Func {
	if err := config.Validate(); err != nil {
		return func(record.WriteEvent, record.RecordWriter) error {
			return fmt.Errorf("invalid filter configuration: %w", err)
		}
	}

	var keyRegex *regexp.Regexp
	if config.KeyPattern != "" {
		keyRegex = regexp.MustCompile(config.KeyPattern)
	}

	return func(e record.WriteEvent, w record.RecordWriter) error {
		if !config.matches(e.Record, keyRegex) {
			return nil
		}
		return w.Write(e.Record)
	}
}

func (c *FilterConfig) matches(r record.Record, keyRegex *regexp.Regexp) bool {
	if c.DropTombstones && !r.HasValue() {
		return false
	}

	for _, h := range c.Headers {
		if _, ok := r.Header(h); !ok {
			return false
		}
	}

	key := string(r.Key)

	// Filter by excluded keys
	if matchesAny(c.ExcludeKeys, key) {
		return false
	}

	// Filter by included keys
	if len(c.Keys) > 0 && !matchesAny(c.Keys, key) {
		return false
	}

	if keyRegex != nil && !keyRegex.MatchString(key) {
		return false
	}

	return true
}

func matchesAny(globs []string, key string) bool {
	for _, glob := range globs {
		if matched, _ := filepath.Match(glob, key); matched {
			return true
		}
	}
	return false
}
