package core

// LogLine represents a single line read from a source.
type LogLine struct {
	SourceID string `json:"source_id"`
	TsUnixMs int64  `json:"ts_unix_ms"`
	Stream   string `json:"stream"` // "stdin", "file", "stdout", "stderr"
	Line     string `json:"line"`
}

// Detection is a status code found in a line that passed the filter.
type Detection struct {
	ID       string     `json:"id"`
	Code     StatusCode `json:"code"`
	SourceID string     `json:"source_id"`
	Stream   string     `json:"stream"`
	Line     string     `json:"line"`
	TsUnixMs int64      `json:"ts_unix_ms"`
}
