package reconcile

import "strconv"

// TempIDs is a call-scoped arena mapping small integer aliases to real
// memory ids. The reasoner only ever sees aliases, so a hallucinated
// identifier is an out-of-range integer rather than a plausible-looking
// id that might collide with a real record. Position in the arena is the
// alias; the arena is discarded after one reconciliation call.
type TempIDs struct {
	ids []string
}

// NewTempIDs creates an empty arena.
func NewTempIDs() *TempIDs {
	return &TempIDs{}
}

// Add registers a real id and returns its alias. Adding the same id twice
// returns the existing alias.
func (t *TempIDs) Add(id string) int {
	for i, existing := range t.ids {
		if existing == id {
			return i
		}
	}
	t.ids = append(t.ids, id)
	return len(t.ids) - 1
}

// Resolve maps an alias, as the raw string the reasoner returned, back to
// the real id. Non-integer or out-of-range aliases fail.
func (t *TempIDs) Resolve(alias string) (string, bool) {
	n, err := strconv.Atoi(alias)
	if err != nil || n < 0 || n >= len(t.ids) {
		return "", false
	}
	return t.ids[n], true
}

// Len reports the number of registered ids.
func (t *TempIDs) Len() int {
	return len(t.ids)
}
