package transform

import (
	"fmt"
	"regexp"

	"github.com/edgeflare/json2avro/pkg/jsonv"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
)

// ReplaceConfig holds the configuration for the replace transformation
type ReplaceConfig struct {
	// Top-level JSON field renames
	Fields map[string]string `json:"fields,omitempty" mapstructure:"fields"`

	// Header key renames
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers"`

	// Regex replacements
	Regex []RegexReplacement `json:"regex,omitempty" mapstructure:"regex"`
}

// RegexReplacement defines a regex-based replacement rule
type RegexReplacement struct {
	Type    string `json:"type" mapstructure:"type"`       // "field", "header" or "key"
	Pattern string `json:"pattern" mapstructure:"pattern"` // Regex pattern to match
	Replace string `json:"replace" mapstructure:"replace"` // Replacement string (can use regex groups)
}

// Validate validates the ReplaceConfig
func (c *ReplaceConfig) Validate() error {
	// Ensure at least one replacement type is configured
	if len(c.Fields) == 0 &&
		len(c.Headers) == 0 &&
		len(c.Regex) == 0 {
		return fmt.Errorf("at least one replacement configuration is required")
	}

	// Validate regex patterns
	for _, regex := range c.Regex {
		if !isValidReplacementType(regex.Type) {
			return fmt.Errorf("invalid replacement type: %s", regex.Type)
		}
		if _, err := regexp.Compile(regex.Pattern); err != nil {
			return fmt.Errorf("invalid regex pattern %s: %w", regex.Pattern, err)
		}
	}

	return nil
}

func isValidReplacementType(t string) bool {
	return t == "field" || t == "header" || t == "key"
}

// Type returns the type of the transformation
func (c *ReplaceConfig) Type() string {
	return TypeReplace
}

type compiledReplacement struct {
	re *regexp.Regexp
	RegexReplacement
}

// Replace creates a Func that renames JSON fields and header keys, and
// rewrites record keys.
func Replace(config *ReplaceConfig) Func {
	if err := config.Validate(); err != nil {
		return func(record.WriteEvent, record.RecordWriter) error {
			return fmt.Errorf("invalid replace configuration: %w", err)
		}
	}

	var fieldRules, headerRules, keyRules []compiledReplacement
	for _, regex := range config.Regex {
		rule := compiledReplacement{re: regexp.MustCompile(regex.Pattern), RegexReplacement: regex}
		switch regex.Type {
		case "field":
			fieldRules = append(fieldRules, rule)
		case "header":
			headerRules = append(headerRules, rule)
		case "key":
			keyRules = append(keyRules, rule)
		}
	}
	rewritesValue := len(config.Fields) > 0 || len(fieldRules) > 0

	return func(e record.WriteEvent, w record.RecordWriter) error {
		// Copy so the input record is never mutated
		current := e.Record
		current.Headers = record.CopyHeaders(e.Record.Headers)

		if len(keyRules) > 0 && current.Key != nil {
			key := string(current.Key)
			for _, rule := range keyRules {
				key = rule.re.ReplaceAllString(key, rule.Replace)
			}
			current.Key = []byte(key)
		}

		if len(config.Headers) > 0 || len(headerRules) > 0 {
			for i, h := range current.Headers {
				current.Headers[i].Key = []byte(rename(string(h.Key), config.Headers, headerRules))
			}
		}

		if rewritesValue && current.HasValue() {
			obj, err := jsonObject(current.Value)
			if err != nil {
				return fmt.Errorf("replace: %w", err)
			}
			renamed := make(jsonv.Object, len(obj))
			for k, v := range obj {
				renamed[rename(k, config.Fields, fieldRules)] = v
			}
			if current.Value, err = jsonv.Marshal(renamed); err != nil {
				return fmt.Errorf("replace: %w", err)
			}
		}

		return w.Write(current)
	}
}

// rename applies the exact replacement first, then the regex rules in order.
func rename(name string, exact map[string]string, rules []compiledReplacement) string {
	if replacement, exists := exact[name]; exists {
		name = replacement
	}
	for _, rule := range rules {
		name = rule.re.ReplaceAllString(name, rule.Replace)
	}
	return name
}
