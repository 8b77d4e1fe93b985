package reconcile

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/parchmentco/engram/pkg/extract"
	"github.com/parchmentco/engram/pkg/reasoner"
	"github.com/parchmentco/engram/pkg/surprise"
)

const decisionPrompt = `You maintain a memory store. Compare the new facts against the existing memories and decide, for each new fact, one of:
- ADD: the fact is new.
- UPDATE: the fact replaces or refines an existing memory. Reference the memory's integer id and include the rewritten text.
- DELETE: the fact contradicts an existing memory, which must be removed. Reference its id.
- NONE: the fact is already fully captured. Reference the matching id.

Return a JSON object of the form:
{"memory": [{"id": "0", "event": "UPDATE", "text": "rewritten text", "old_memory": "previous text"}]}

For ADD omit the id. Only use ids that appear in the existing memories.`

// Candidate is one extracted fact with its precomputed novelty verdict.
type Candidate struct {
	Text       string
	Assessment surprise.Assessment
}

// Existing is a nearby memory record shown to the reasoner under an alias.
type Existing struct {
	ID   string
	Text string
}

// Planner turns candidates plus nearby memories into a batch of actions.
// It is pure with respect to storage; applying actions is the caller's job.
type Planner struct {
	reasoner reasoner.Reasoner
	logger   *zap.Logger
}

// NewPlanner creates a planner.
func NewPlanner(r reasoner.Reasoner, logger *zap.Logger) *Planner {
	return &Planner{reasoner: r, logger: logger}
}

type decision struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Text      string `json:"text"`
	OldMemory string `json:"old_memory"`
}

type decisionBatch struct {
	Memory []decision `json:"memory"`
}

// Plan asks the reasoner for one decision per candidate and resolves them
// into actions. A failed or unusable reasoner call returns an empty batch;
// individually malformed decisions are skipped.
func (p *Planner) Plan(ctx context.Context, candidates []Candidate, existing []Existing) []Action {
	if len(candidates) == 0 {
		return nil
	}

	temp := NewTempIDs()
	assessments := make(map[string]surprise.Assessment, len(candidates))
	for _, c := range candidates {
		assessments[c.Text] = c.Assessment
	}

	prompt := p.renderInput(candidates, existing, temp)

	resp, err := p.reasoner.Generate(ctx, []reasoner.Message{
		{Role: reasoner.RoleSystem, Content: decisionPrompt},
		{Role: reasoner.RoleUser, Content: prompt},
	}, &reasoner.Options{JSONMode: true})
	if err != nil {
		p.logger.Warn("reconciliation call failed, applying no actions", zap.Error(err))
		return nil
	}

	payload, err := extract.ExtractJSON(resp)
	if err != nil {
		p.logger.Warn("reconciliation response was not JSON, applying no actions", zap.Error(err))
		return nil
	}

	var batch decisionBatch
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		p.logger.Warn("reconciliation response had unexpected shape, applying no actions", zap.Error(err))
		return nil
	}

	actions := make([]Action, 0, len(batch.Memory))
	for _, d := range batch.Memory {
		action, ok := p.resolve(d, temp, assessments)
		if !ok {
			continue
		}
		actions = append(actions, action)
	}

	return actions
}

// renderInput builds the user prompt, registering every existing record in
// the temp arena so the reasoner only sees integer aliases.
func (p *Planner) renderInput(candidates []Candidate, existing []Existing, temp *TempIDs) string {
	type aliased struct {
		ID   int    `json:"id"`
		Text string `json:"text"`
	}

	memories := make([]aliased, 0, len(existing))
	for _, e := range existing {
		memories = append(memories, aliased{ID: temp.Add(e.ID), Text: e.Text})
	}

	facts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		facts = append(facts, c.Text)
	}

	var b strings.Builder
	b.WriteString("Existing memories:\n")
	if encoded, err := json.Marshal(memories); err == nil {
		b.Write(encoded)
	} else {
		b.WriteString("[]")
	}
	b.WriteString("\n\nNew facts:\n")
	if encoded, err := json.Marshal(facts); err == nil {
		b.Write(encoded)
	} else {
		b.WriteString("[]")
	}

	return b.String()
}

// resolve validates one decision and turns it into an action.
func (p *Planner) resolve(d decision, temp *TempIDs, assessments map[string]surprise.Assessment) (Action, bool) {
	switch Op(strings.ToUpper(strings.TrimSpace(d.Event))) {
	case OpAdd:
		if strings.TrimSpace(d.Text) == "" {
			p.logger.Warn("skipping ADD decision without text")
			return Action{}, false
		}

		// A fact the store already holds reinforces its best match
		// instead of creating a duplicate.
		if a, ok := assessments[d.Text]; ok && !a.IsSurprising && a.BestMatchID != "" {
			return Action{Op: OpReinforce, ID: a.BestMatchID, Text: d.Text}, true
		}

		flashbulb := false
		if a, ok := assessments[d.Text]; ok {
			flashbulb = a.IsFlashbulb
		}
		return Action{Op: OpAdd, Text: d.Text, Flashbulb: flashbulb}, true

	case OpUpdate:
		id, ok := temp.Resolve(d.ID)
		if !ok {
			p.logger.Warn("skipping UPDATE with unresolved id", zap.String("alias", d.ID))
			return Action{}, false
		}
		if strings.TrimSpace(d.Text) == "" {
			p.logger.Warn("skipping UPDATE without text", zap.String("id", id))
			return Action{}, false
		}
		return Action{Op: OpUpdate, ID: id, Text: d.Text, PreviousText: d.OldMemory}, true

	case OpDelete:
		id, ok := temp.Resolve(d.ID)
		if !ok {
			p.logger.Warn("skipping DELETE with unresolved id", zap.String("alias", d.ID))
			return Action{}, false
		}
		return Action{Op: OpDelete, ID: id, PreviousText: d.Text}, true

	case OpNone:
		id, ok := temp.Resolve(d.ID)
		if !ok {
			// A NONE against nothing is a true no-op, not worth logging.
			return Action{}, false
		}
		return Action{Op: OpNone, ID: id, Text: d.Text}, true

	default:
		p.logger.Warn("skipping unknown reconciliation event", zap.String("event", d.Event))
		return Action{}, false
	}
}
