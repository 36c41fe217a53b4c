package model

// CandidateKind tells a meter candidate apart from a group candidate.
type CandidateKind string

const (
	// CandidateMeter marks a candidate that is a single meter.
	CandidateMeter CandidateKind = "meter"
	// CandidateGroup marks a candidate that is a whole subgroup.
	CandidateGroup CandidateKind = "group"
)

// Candidate names a meter or group considered for addition to a group.
type Candidate struct {
	Kind CandidateKind
	ID   int64
}

// MeterCandidate builds a meter candidate.
func MeterCandidate(id MeterID) Candidate {
	return Candidate{Kind: CandidateMeter, ID: int64(id)}
}

// GroupCandidate builds a group candidate.
func GroupCandidate(id GroupID) Candidate {
	return Candidate{Kind: CandidateGroup, ID: int64(id)}
}

// MenuOption is the presentation-free state of one add-candidate menu entry.
// Disabled is true exactly when choosing the candidate would leave the group
// with no compatible units; color and styling belong to the consumer.
type MenuOption struct {
	Label      string
	ChangeCase ChangeCase
	Candidate  Candidate
	Disabled   bool
}
