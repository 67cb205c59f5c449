package partsrvc

// legalTransitions is the participation lifecycle. Self transitions are
// always allowed so idempotent replays do not trip the guard.
var legalTransitions = map[InitState][]InitState{
	StateUninitialized:  {StateRepoConfigured},
	StateRepoConfigured: {StateRepoCopied},
	StateRepoCopied:     {StateInitialized},
	StateInitialized:    {StateInactive},
	StateInactive:       {StateInitialized},
}

func canTransition(from InitState, to InitState) bool {
	if from == to {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsInitialized reports whether operations that require a fully provisioned
// workspace (push acceptance, build triggering) may proceed.
func (p *Participation) IsInitialized() bool {
	return p.InitState == StateInitialized
}

// transition mutates the state after checking legality.
func (p *Participation) transition(to InitState) error {
	if !canTransition(p.InitState, to) {
		return ErrIllegalStateTransition(p.InitState, to)
	}
	p.InitState = to
	return nil
}
