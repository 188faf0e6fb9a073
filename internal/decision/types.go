package decision

import "time"

// #region results
const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Binding identifies which policy backend produced a record.
const (
	BindingYAML = "yaml"
	BindingOPA  = "opa"
)

// #endregion results

// #region record
// Record is one immutable audit entry for a policy evaluation.
type Record struct {
	DecisionID       string
	ScopeID          string
	PolicyVersion    string
	Result           string // "allow" | "deny"
	Reason           string
	Obligations      []string
	Binding          string // "yaml" | "opa"
	SuggestedActions []string
	CreatedAt        time.Time
}

// #endregion record
