package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/swarm-governor/internal/bus"
	"github.com/danielpatrickdp/swarm-governor/internal/drift"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
	"github.com/danielpatrickdp/swarm-governor/internal/message"
	"github.com/danielpatrickdp/swarm-governor/internal/policy"
)

// #region pending-sink
// PendingSink receives proposals that need a human decision. Satisfied by
// the MITL server.
type PendingSink interface {
	AddPending(id string, proposal message.Proposal, action message.Action)
}

// #endregion pending-sink

// #region router
// Router fans incoming proposals out by governance mode: MASTER bypasses
// policy, MITL parks the proposal for a human, YOLO evaluates it against the
// policy engine immediately.
type Router struct {
	engine      policy.Engine
	drift       drift.Source
	pending     PendingSink
	pub         bus.Publisher
	defaultMode message.Mode
}

// NewRouter wires the router. defaultMode applies when a proposal carries no
// valid mode of its own.
func NewRouter(engine policy.Engine, driftSrc drift.Source, pending PendingSink, pub bus.Publisher, defaultMode message.Mode) *Router {
	if !message.ValidMode(defaultMode) {
		defaultMode = message.ModeYOLO
	}
	return &Router{
		engine:      engine,
		drift:       driftSrc,
		pending:     pending,
		pub:         pub,
		defaultMode: defaultMode,
	}
}

// Handler adapts the router for a bus consumer loop.
func (r *Router) Handler(ctx context.Context) func(data []byte) error {
	return func(data []byte) error {
		return r.HandleProposal(ctx, data)
	}
}

// #endregion router

// #region handle
// HandleProposal decodes one proposal and routes it. Delivery is
// at-least-once, so a replayed proposal simply re-runs the same decision; the
// executor's epoch check makes duplicate approvals harmless.
func (r *Router) HandleProposal(ctx context.Context, data []byte) error {
	var p message.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode proposal: %w", err)
	}
	if p.ProposalID == "" {
		p.ProposalID = uuid.NewString()
	}
	if p.Payload.ScopeID == "" {
		p.Payload.ScopeID = graph.DefaultScope
	}

	mode := p.Mode
	if !message.ValidMode(mode) {
		mode = r.defaultMode
	}

	switch mode {
	case message.ModeMaster:
		return r.approve(p, "master_override", "")
	case message.ModeMITL:
		r.pending.AddPending(p.ProposalID, p, r.buildAction(p))
		return nil
	default:
		return r.evaluate(ctx, p)
	}
}

// #endregion handle

// #region outcomes
func (r *Router) buildAction(p message.Proposal) message.Action {
	actionType := message.ActionTransition
	if p.ProposedAction == message.ProposalFinalityReview {
		actionType = message.ActionFinality
	}
	payload := p.Payload
	if payload.To == "" {
		payload.To = p.TargetNode
	}
	return message.Action{
		ProposalID: p.ProposalID,
		ActionType: actionType,
		Payload:    payload,
	}
}

func (r *Router) approve(p message.Proposal, approvedBy, reason string) error {
	action := r.buildAction(p)
	action.ApprovedBy = approvedBy
	action.Result = "approved"
	action.Reason = reason

	if err := r.pub.Publish(bus.ActionSubject(action.ActionType), action); err != nil {
		return fmt.Errorf("publish action %s: %w", p.ProposalID, err)
	}
	log.Printf("[ROUTER] approved %s by=%s agent=%s", p.ProposalID, approvedBy, p.Agent)
	return nil
}

func (r *Router) reject(p message.Proposal, reason string) error {
	rej := message.Rejection{ProposalID: p.ProposalID, Reason: reason, Result: "rejected"}
	if err := r.pub.Publish(bus.RejectionSubject(p.ProposalID), rej); err != nil {
		return fmt.Errorf("publish rejection %s: %w", p.ProposalID, err)
	}
	log.Printf("[ROUTER] rejected %s agent=%s reason=%s", p.ProposalID, p.Agent, reason)
	return nil
}

// #endregion outcomes

// #region evaluate
// evaluate runs the policy engine against the proposal plus the current drift
// snapshot. Drift lookup failure denies the proposal; evaluating against a
// stale-or-absent drift picture would bypass the drift rules.
func (r *Router) evaluate(ctx context.Context, p message.Proposal) error {
	ds, err := r.drift.Current(ctx, p.Payload.ScopeID)
	if err != nil {
		log.Printf("[ROUTER] drift lookup %s: %v", p.Payload.ScopeID, err)
		return r.reject(p, "drift_unavailable")
	}

	to := p.Payload.To
	if to == "" {
		to = p.TargetNode
	}
	pc := policy.Context{
		ScopeID:    p.Payload.ScopeID,
		FromState:  p.Payload.From,
		ToState:    to,
		DriftLevel: ds.Level,
		DriftTypes: ds.Types,
	}

	out, err := r.engine.Evaluate(ctx, pc)
	if err != nil {
		return fmt.Errorf("evaluate %s: %w", p.ProposalID, err)
	}
	if !out.Allowed {
		return r.reject(p, out.Record.Reason)
	}
	return r.approve(p, "policy", out.Record.Reason)
}

// #endregion evaluate
