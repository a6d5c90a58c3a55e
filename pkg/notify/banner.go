package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/modoterra/catlog/pkg/core"
)

// Banner prints a highlighted "<code> Detected!" line.
type Banner struct {
	w     io.Writer
	style lipgloss.Style
	mu    sync.Mutex
}

// NewBanner creates a banner writing to w. Colors are used only when w is a
// terminal that supports them.
func NewBanner(w io.Writer) *Banner {
	renderer := lipgloss.NewRenderer(w)
	return &Banner{
		w: w,
		style: renderer.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("11")),
	}
}

func (b *Banner) Notify(_ context.Context, d core.Detection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	message := fmt.Sprintf("🐱 %d Detected! 🐱", d.Code)
	_, err := fmt.Fprintf(b.w, "\n%s\n\n", b.style.Render(message))
	return err
}
