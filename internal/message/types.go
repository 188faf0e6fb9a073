package message

// #region modes
// Mode is the governance enforcement mode carried by a proposal.
type Mode string

const (
	// ModeMaster bypasses policy evaluation; the action is approved unconditionally.
	ModeMaster Mode = "MASTER"
	// ModeMITL defers the decision to a human via the pending queue.
	ModeMITL Mode = "MITL"
	// ModeYOLO evaluates the proposal against the policy engine immediately.
	ModeYOLO Mode = "YOLO"
)

// ValidMode reports whether m is one of the three governance modes.
func ValidMode(m Mode) bool {
	return m == ModeMaster || m == ModeMITL || m == ModeYOLO
}

// #endregion modes

// #region proposal
// Proposal is a request from an agent to change pipeline state.
// Immutable once created; identified by ProposalID for its whole lifetime.
type Proposal struct {
	ProposalID     string        `json:"proposal_id"`
	Agent          string        `json:"agent"`
	ProposedAction string        `json:"proposed_action"`
	TargetNode     string        `json:"target_node"`
	Payload        ActionPayload `json:"payload"`
	Mode           Mode          `json:"mode"`
}

// ActionPayload carries the transition parameters an approved action executes with.
type ActionPayload struct {
	ScopeID       string         `json:"scope_id,omitempty"`
	ExpectedEpoch int64          `json:"expectedEpoch"`
	RunID         string         `json:"runId,omitempty"`
	From          string         `json:"from,omitempty"`
	To            string         `json:"to,omitempty"`
	Option        string         `json:"option,omitempty"` // finality actions only
	Days          int            `json:"days,omitempty"`   // finality defer only
	Extra         map[string]any `json:"extra,omitempty"`
}

// #endregion proposal

// #region action
// Action is an approved operation published on the actions topic family.
type Action struct {
	ProposalID string        `json:"proposal_id"`
	ApprovedBy string        `json:"approved_by"` // "master_override" | "policy" | "human"
	Result     string        `json:"result"`      // always "approved"
	Reason     string        `json:"reason,omitempty"`
	ActionType string        `json:"action_type"` // "transition" | "finality" | "finality_status"
	Payload    ActionPayload `json:"payload"`
}

// Rejection is published on the rejections topic family when a proposal
// or an action is refused.
type Rejection struct {
	ProposalID string `json:"proposal_id"`
	Reason     string `json:"reason"`
	Result     string `json:"result"` // always "rejected"
}

// Job triggers the worker responsible for a pipeline node after a
// transition lands.
type Job struct {
	ScopeID string `json:"scope_id"`
	RunID   string `json:"run_id,omitempty"`
	Node    string `json:"node"`
	Epoch   int64  `json:"epoch"`
}

// #endregion action

// #region action-types
const (
	ActionTransition     = "transition"
	ActionFinality       = "finality"
	ActionFinalityStatus = "finality_status"
)

// ProposalFinalityReview marks a proposal raised by the finality evaluator;
// it can only be resolved through the finality-response endpoint.
const ProposalFinalityReview = "finality_review"

// #endregion action-types
