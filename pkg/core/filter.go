package core

import (
	"slices"
	"strconv"
	"strings"
)

// FilterMode names the rule that decided a classification.
type FilterMode string

const (
	FilterExplicit   FilterMode = "explicit"
	FilterAll        FilterMode = "all"
	FilterErrorsOnly FilterMode = "errors-only"
)

// FilterConfig decides which detected codes trigger a notification. It is
// built once at startup and never mutated, so it can be shared freely.
type FilterConfig struct {
	ExplicitCodes []StatusCode
	MatchAll      bool
	ErrorsOnly    bool
}

// DefaultFilter notifies on 4xx and 5xx codes only.
func DefaultFilter() FilterConfig {
	return FilterConfig{ErrorsOnly: true}
}

// Mode returns the rule that applies. An explicit code list wins over
// MatchAll, which wins over the errors-only default.
func (f FilterConfig) Mode() FilterMode {
	switch {
	case len(f.ExplicitCodes) > 0:
		return FilterExplicit
	case f.MatchAll:
		return FilterAll
	default:
		return FilterErrorsOnly
	}
}

// ShouldNotify reports whether code passes the filter.
func (f FilterConfig) ShouldNotify(code StatusCode) bool {
	switch f.Mode() {
	case FilterExplicit:
		return slices.Contains(f.ExplicitCodes, code)
	case FilterAll:
		return true
	default:
		return code.IsError()
	}
}

// ParseCodes parses a comma separated list such as "404, 500,503". Codes are
// returned in order without duplicates; tokens that are not valid status codes
// are returned separately.
func ParseCodes(list string) (codes []StatusCode, invalid []string) {
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		code := StatusCode(n)
		if err != nil || !code.Valid() {
			invalid = append(invalid, tok)
			continue
		}
		if !slices.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	return codes, invalid
}
