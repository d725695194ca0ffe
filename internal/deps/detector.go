package deps

// FileSet is a host's "modified since last pass" signal keyed by
// normalized path. A nil FileSet means the host sent no signal at all.
type FileSet map[string]struct{}

// NewFileSet builds a FileSet from raw paths.
func NewFileSet(paths ...string) FileSet {
	set := make(FileSet, len(paths))
	for _, p := range paths {
		set.Add(p)
	}
	return set
}

// Add normalizes p and inserts it.
func (s FileSet) Add(p string) {
	if key := Normalize(p); key != "" {
		s[key] = struct{}{}
	}
}

// Has reports whether p, once normalized, is in the set.
func (s FileSet) Has(p string) bool {
	_, ok := s[Normalize(p)]
	return ok
}

// NeedsRecompile decides whether a pass has work to do.
//
// Without a signal (first pass, or a host that cannot report changes) the
// answer is always yes. Otherwise it is yes iff some tracked path was
// modified; an empty tracker therefore never needs a recompile once a
// signal exists. The check walks the tracker, not the entry set.
func NeedsRecompile(modified FileSet, tracker *Tracker) bool {
	if modified == nil {
		return true
	}
	if len(modified) == 0 {
		return false
	}

	found := false
	tracker.each(func(key string) bool {
		if _, ok := modified[key]; ok {
			found = true
			return false
		}
		return true
	})
	return found
}
