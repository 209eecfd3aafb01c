package engine

import (
	"bufio"
	"io"
	"sync"

	"golang.org/x/xerrors"
)

// Phase markers emitted in rating mode, in run order.
const (
	MarkStartingValidation = "StartingValidation"
	MarkUpdatesInDB        = "UpdatesInDB"
	MarkDoneReadCycles     = "DoneReadCycles"
	MarkDoneReadValidation = "DoneReadValidation"
	MarkPopulateStats      = "PopulateStats"
)

// Markers writes coarse phase markers for an external rating harness. A nil
// *Markers is a no-op sink.
type Markers struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewMarkers(w io.Writer) *Markers {
	return &Markers{w: bufio.NewWriter(w)}
}

// Mark writes name followed by a space and flushes it.
func (m *Markers) Mark(name string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.WriteString(name + " "); err != nil {
		return xerrors.Errorf("write marker %s: %w", name, err)
	}
	if err := m.w.Flush(); err != nil {
		return xerrors.Errorf("flush marker %s: %w", name, err)
	}
	return nil
}
