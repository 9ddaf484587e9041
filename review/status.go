package review

// Status represents the lifecycle state of a rule candidate.
type Status string

const (
	// StatusNew indicates a freshly extracted candidate awaiting review.
	StatusNew Status = "new"
	// StatusApproved indicates the reviewer accepted the candidate as-is.
	StatusApproved Status = "approved"
	// StatusEdited indicates the reviewer changed the canonical text.
	StatusEdited Status = "edited"
	// StatusDiscarded indicates the candidate was soft-removed. Discarded
	// candidates stay in the store for audit but are invisible to every
	// filtered view and to pack assembly.
	StatusDiscarded Status = "discarded"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusApproved, StatusEdited, StatusDiscarded:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true if the status may move to the target state.
// Discarded is terminal: re-activation is not supported.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusNew:
		return target == StatusApproved || target == StatusDiscarded || target == StatusEdited
	case StatusApproved:
		return target == StatusEdited || target == StatusDiscarded
	case StatusEdited:
		return target == StatusApproved || target == StatusDiscarded
	case StatusDiscarded:
		return false
	default:
		return false
	}
}

// Accepting reports whether candidates in this status qualify for pack
// assembly.
func (s Status) Accepting() bool {
	return s == StatusApproved || s == StatusEdited
}
