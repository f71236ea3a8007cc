package booking

// Selection is an insertion-ordered set of slot ids. The zero value is empty and
// ready to use. It is not safe for concurrent use on its own.
type Selection struct {
	ids []int64
}

// Toggle adds id when absent and removes it when present. It returns whether id is
// selected afterwards.
func (s *Selection) Toggle(id int64) bool {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			return false
		}
	}
	s.ids = append(s.ids, id)
	return true
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id int64) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
}

// Len returns the number of selected ids.
func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns a copy in insertion order.
func (s *Selection) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}
