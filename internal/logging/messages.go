package logging

import "sync"

// Messages is an append-only buffer of log lines shared between a build and
// the spans it opens.
type Messages struct {
	mu    sync.Mutex
	lines []string
}

func (m *Messages) Append(line string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	m.lines = append(m.lines, line)
	m.mu.Unlock()
}

// Snapshot returns a copy of the buffered lines
func (m *Messages) Snapshot() []string {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.lines))
	copy(out, m.lines)

	return out
}

func (m *Messages) Len() int {
	if m == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.lines)
}
