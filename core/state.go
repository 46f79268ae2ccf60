package core

import "github.com/google/uuid"

// State is the single mutable record threaded through the orchestration graph
// for one request. It is created fresh per request and discarded once the
// final answer has been extracted.
//
// Field contract:
//   - Question never changes after NewState
//   - Answer stays empty until a specialist writes it; a chained post-processor
//     may replace it but never clears it
//   - History is append-only; merges concatenate in invocation order
//   - NextNode is written once by the router and read once by the conditional
//     edge; specialists never see a meaningful value here
type State struct {
	RequestID string    `json:"request_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer,omitempty"`
	History   []Content `json:"history,omitempty"`
	NextNode  string    `json:"-"`
}

// NewState creates the per-request state. The supplied history is copied so
// later appends never alias the caller's slice.
func NewState(question string, history []Content) State {
	h := make([]Content, len(history))
	copy(h, history)
	return State{
		RequestID: uuid.NewString(),
		Question:  question,
		History:   h,
	}
}

// Update is the partial state produced by one node. Nil pointer fields mean
// "no change"; History entries are appended.
type Update struct {
	Answer   *string
	History  []Content
	NextNode *string
}

// AnswerUpdate is a convenience constructor for the common specialist result.
func AnswerUpdate(answer string, turns ...Content) Update {
	return Update{Answer: &answer, History: turns}
}

// RouteUpdate produces the router's only permitted write.
func RouteUpdate(next string) Update {
	return Update{NextNode: &next}
}

// Merge applies u on top of s and returns the merged state. Merging is
// monotonic: no field is deleted and an empty answer never overwrites an
// existing one.
func (s State) Merge(u Update) State {
	out := s
	if u.Answer != nil && *u.Answer != "" {
		out.Answer = *u.Answer
	}
	if u.NextNode != nil {
		out.NextNode = *u.NextNode
	}
	if len(u.History) > 0 {
		h := make([]Content, 0, len(s.History)+len(u.History))
		h = append(h, s.History...)
		h = append(h, u.History...)
		out.History = h
	}
	return out
}
