package watch

// change is the net effect of one or more events on a path within a batch
type change int

const (
	fileUpdated change = iota
	fileAdded
	fileDeleted
	dirAdded
	dirDeleted
)

// batch accumulates watcher events between two quiet periods
type batch struct {
	order   []string
	changes map[string]change
}

func newBatch() *batch {
	return &batch{changes: make(map[string]change)}
}

func (b *batch) empty() bool {
	return len(b.changes) == 0
}

// add folds a new event for path into the batch
func (b *batch) add(path string, c change) {
	prev, ok := b.changes[path]
	if !ok {
		b.order = append(b.order, path)
		b.changes[path] = c
		return
	}

	switch {
	case prev == fileAdded && c == fileUpdated:
		// still new to the build
	case prev == fileAdded && c == fileDeleted, prev == dirAdded && c == dirDeleted:
		// created and gone again within the batch
		delete(b.changes, path)
		b.drop(path)
	case prev == fileDeleted && c == fileAdded:
		b.changes[path] = fileUpdated
	default:
		b.changes[path] = c
	}
}

// drop removes path from the arrival order
func (b *batch) drop(path string) {
	for i, p := range b.order {
		if p == path {
			b.order = append(b.order[:i], b.order[i+1:]...)
			return
		}
	}
}

// report converts the batch into a raw watch report. Changes to configFile
// set ConfigUpdated instead of being listed.
func (b *batch) report(configFile string) *Report {
	r := &Report{
		FilesUpdated: []string{},
		FilesAdded:   []string{},
		FilesDeleted: []string{},
		DirsAdded:    []string{},
		DirsDeleted:  []string{},
	}

	for _, path := range b.order {
		c, ok := b.changes[path]
		if !ok {
			continue
		}

		if configFile != "" && path == configFile {
			r.ConfigUpdated = true
			continue
		}

		switch c {
		case fileUpdated:
			r.FilesUpdated = append(r.FilesUpdated, path)
		case fileAdded:
			r.FilesAdded = append(r.FilesAdded, path)
		case fileDeleted:
			r.FilesDeleted = append(r.FilesDeleted, path)
		case dirAdded:
			r.DirsAdded = append(r.DirsAdded, path)
		case dirDeleted:
			r.DirsDeleted = append(r.DirsDeleted, path)
		}
	}

	return r
}
