// Package reconcile decides how candidate facts change the existing memory
// set: create, rewrite, tombstone, reinforce, or leave alone. Decisions come
// from the reasoner but are never trusted blindly; hallucinated identifiers
// and malformed entries are skipped, and a dead reasoner degrades the whole
// batch to no actions.
package reconcile

// Op is the kind of mutation an action applies.
type Op string

const (
	// OpAdd creates a new memory record.
	OpAdd Op = "ADD"

	// OpUpdate rewrites an existing record's text.
	OpUpdate Op = "UPDATE"

	// OpDelete tombstones an existing record.
	OpDelete Op = "DELETE"

	// OpReinforce bumps an existing record instead of duplicating it.
	OpReinforce Op = "REINFORCE"

	// OpNone leaves content untouched, at most refreshing scoping fields.
	OpNone Op = "NONE"
)

// Action is one resolved mutation against the memory set.
type Action struct {
	// Op is the mutation kind.
	Op Op

	// ID is the target record for UPDATE/DELETE/REINFORCE/NONE. Empty for
	// ADD, where the applier assigns a fresh id.
	ID string

	// Text is the fact text carried by ADD/UPDATE/REINFORCE.
	Text string

	// PreviousText is the replaced or removed text, recorded for audit.
	PreviousText string

	// Flashbulb marks an ADD whose novelty cleared the stricter threshold.
	Flashbulb bool
}
