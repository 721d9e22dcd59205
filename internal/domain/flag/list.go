package flag

// UniqueList is an insertion-ordered set of flags. Adding a flag equal to
// one already present is a no-op. The zero value is ready to use.
type UniqueList struct {
	items []Flag
	seen  map[string]struct{}
}

// NewUniqueList creates a list pre-filled with flags.
func NewUniqueList(flags ...Flag) *UniqueList {
	l := &UniqueList{}
	l.Add(flags...)
	return l
}

// Add appends each flag not already present.
func (l *UniqueList) Add(flags ...Flag) {
	if l.seen == nil {
		l.seen = make(map[string]struct{}, len(flags))
	}
	for _, f := range flags {
		k := f.Key()
		if _, ok := l.seen[k]; ok {
			continue
		}
		l.seen[k] = struct{}{}
		l.items = append(l.items, f)
	}
}

// Contains reports whether an equal flag is in the list.
func (l *UniqueList) Contains(f Flag) bool {
	_, ok := l.seen[f.Key()]
	return ok
}

// Len returns the number of distinct flags.
func (l *UniqueList) Len() int {
	return len(l.items)
}

// Flags returns a copy of the flags in insertion order.
func (l *UniqueList) Flags() []Flag {
	out := make([]Flag, len(l.items))
	copy(out, l.items)
	return out
}

// Unique returns flags with duplicates removed, keeping first occurrences.
func Unique(flags []Flag) []Flag {
	return NewUniqueList(flags...).Flags()
}

// UniqueStrings removes duplicate strings, keeping first occurrences.
func UniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
