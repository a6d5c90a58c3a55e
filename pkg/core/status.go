package core

import (
	"regexp"
	"strconv"
)

// StatusCode is an HTTP status code in the range [100, 599].
type StatusCode int

const (
	MinStatusCode StatusCode = 100
	MaxStatusCode StatusCode = 599
)

// statusRx matches a word-bounded run of exactly three digits in range. Class
// restrictions (errors only, explicit lists) belong to FilterConfig.
var statusRx = regexp.MustCompile(`\b[1-5][0-9]{2}\b`)

// Valid reports whether c lies within [100, 599].
func (c StatusCode) Valid() bool {
	return c >= MinStatusCode && c <= MaxStatusCode
}

// IsError reports whether c is a client or server error.
func (c StatusCode) IsError() bool {
	return c >= 400 && c <= 599
}

// Class returns the "Nxx" family of the code, e.g. "4xx".
func (c StatusCode) Class() string {
	if !c.Valid() {
		return "unknown"
	}
	return strconv.Itoa(int(c)/100) + "xx"
}

func (c StatusCode) String() string {
	return strconv.Itoa(int(c))
}

// DetectStatus returns the first status code mentioned in line. Only the first
// match is considered even when a line mentions several codes.
//
// Any bounded three-digit number in range matches, so ports, durations and
// counters such as "took 500 ms" are reported as well.
func DetectStatus(line string) (StatusCode, bool) {
	loc := statusRx.FindStringIndex(line)
	if loc == nil {
		return 0, false
	}
	n, err := strconv.Atoi(line[loc[0]:loc[1]])
	if err != nil {
		return 0, false
	}
	return StatusCode(n), true
}
