package notify

import (
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/modoterra/catlog/pkg/core"
)

// SummaryRenderer describes a fetched picture in one line of text instead of
// drawing it.
type SummaryRenderer struct {
	w      io.Writer
	source string
}

func NewSummaryRenderer(w io.Writer, source string) *SummaryRenderer {
	return &SummaryRenderer{w: w, source: source}
}

func (r *SummaryRenderer) Render(code core.StatusCode, image []byte) error {
	_, err := fmt.Fprintf(r.w, "  [%s/%d · %s · %s]\n",
		r.source, code, http.DetectContentType(image), humanize.Bytes(uint64(len(image))))
	return err
}
