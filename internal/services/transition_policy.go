package services

// TransitionPolicy decides whether an order may move between two statuses.
type TransitionPolicy interface {
	Allowed(from, to int) bool
}

// AllowAllTransitions permits every move; it is the default policy.
type AllowAllTransitions struct{}

func (AllowAllTransitions) Allowed(int, int) bool { return true }

// AdjacencyPolicy only permits moves listed in its table.
type AdjacencyPolicy struct {
	next map[int]map[int]struct{}
}

// NewAdjacencyPolicy builds a policy from a from-status to allowed-targets table.
func NewAdjacencyPolicy(table map[int][]int) AdjacencyPolicy {
	next := make(map[int]map[int]struct{}, len(table))
	for from, targets := range table {
		set := make(map[int]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		next[from] = set
	}
	return AdjacencyPolicy{next: next}
}

func (p AdjacencyPolicy) Allowed(from, to int) bool {
	targets, ok := p.next[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}
