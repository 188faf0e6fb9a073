package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/swarm-governor/internal/bus"
	"github.com/danielpatrickdp/swarm-governor/internal/finality"
	"github.com/danielpatrickdp/swarm-governor/internal/graph"
	"github.com/danielpatrickdp/swarm-governor/internal/message"
)

// #region executor
// Executor is the only component that writes graph state. It consumes
// approved actions, applies transitions under the epoch check, triggers the
// next pipeline stage, and runs the finality evaluator at the top of each
// cycle.
type Executor struct {
	store     *graph.Store
	evaluator *finality.Evaluator
	decisions *finality.DecisionStore
	pub       bus.Publisher
}

// NewExecutor wires the executor to its stores and the bus.
func NewExecutor(store *graph.Store, evaluator *finality.Evaluator, decisions *finality.DecisionStore, pub bus.Publisher) *Executor {
	return &Executor{store: store, evaluator: evaluator, decisions: decisions, pub: pub}
}

// Handler adapts the executor for a bus consumer loop.
func (e *Executor) Handler(ctx context.Context) func(data []byte) error {
	return func(data []byte) error {
		return e.HandleAction(ctx, data)
	}
}

// #endregion executor

// #region handle
// HandleAction dispatches one approved action. Unknown action types are
// logged and dropped so a newer producer cannot wedge the consumer.
func (e *Executor) HandleAction(ctx context.Context, data []byte) error {
	var a message.Action
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	if a.Payload.ScopeID == "" {
		a.Payload.ScopeID = graph.DefaultScope
	}

	switch a.ActionType {
	case message.ActionTransition:
		return e.applyTransition(ctx, a)
	case message.ActionFinality:
		return e.recordFinality(a)
	case message.ActionFinalityStatus:
		// Status broadcasts are for downstream consumers; nothing to execute.
		return nil
	default:
		log.Printf("[EXECUTOR] unknown action type %q for %s, dropping", a.ActionType, a.ProposalID)
		return nil
	}
}

// #endregion handle

// #region transition
// applyTransition applies the epoch-checked state write. A stale epoch is a
// normal race outcome, reported to the proposer as a rejection, never an
// error. Replayed approvals hit the same epoch check and come out as
// conflicts, which keeps at-least-once delivery safe.
func (e *Executor) applyTransition(ctx context.Context, a message.Action) error {
	scope := a.Payload.ScopeID
	target := graph.Node(a.Payload.To)

	res, err := e.store.ApplyTransition(scope, a.Payload.ExpectedEpoch, target)
	if err != nil {
		return fmt.Errorf("transition %s: %w", a.ProposalID, err)
	}

	if res.Conflict {
		reason := fmt.Sprintf("stale epoch: expected %d, current %d", a.Payload.ExpectedEpoch, res.State.Epoch)
		rej := message.Rejection{ProposalID: a.ProposalID, Reason: reason, Result: "rejected"}
		if err := e.pub.Publish(bus.RejectionSubject(a.ProposalID), rej); err != nil {
			return fmt.Errorf("publish conflict %s: %w", a.ProposalID, err)
		}
		log.Printf("[EXECUTOR] conflict %s scope=%s %s", a.ProposalID, scope, reason)
		return nil
	}

	log.Printf("[EXECUTOR] applied %s scope=%s node=%s epoch=%d", a.ProposalID, scope, target, res.State.Epoch)

	next, ok := graph.Next(target)
	if ok {
		runID := a.Payload.RunID
		if runID == "" {
			runID = res.State.RunID
		}
		job := message.Job{
			ScopeID: scope,
			RunID:   runID,
			Node:    string(next),
			Epoch:   res.State.Epoch,
		}
		if err := e.pub.Publish(bus.JobSubject(string(next)), job); err != nil {
			return fmt.Errorf("publish job %s: %w", a.ProposalID, err)
		}
	}

	if target == graph.CycleHead {
		e.checkFinality(ctx, scope, res.State.Epoch)
	}
	return nil
}

// #endregion transition

// #region finality
// checkFinality runs the evaluator after a completed cycle. Evaluator
// failures are logged, not returned: the transition already landed and must
// not be retried.
func (e *Executor) checkFinality(ctx context.Context, scope string, epoch int64) {
	res, err := e.evaluator.Evaluate(ctx, scope)
	if err != nil {
		log.Printf("[EXECUTOR] finality evaluate scope=%s: %v", scope, err)
		return
	}
	if res == nil {
		return
	}

	if res.Status == finality.StatusReview {
		p := message.Proposal{
			ProposalID:     uuid.NewString(),
			Agent:          "governor",
			ProposedAction: message.ProposalFinalityReview,
			Mode:           message.ModeMITL,
			Payload: message.ActionPayload{
				ScopeID:       scope,
				ExpectedEpoch: epoch,
				Extra: map[string]any{
					"score":    res.Score,
					"blockers": res.Blockers,
				},
			},
		}
		if err := e.pub.Publish(bus.ProposalSubject(message.ProposalFinalityReview), p); err != nil {
			log.Printf("[EXECUTOR] publish finality review scope=%s: %v", scope, err)
			return
		}
		log.Printf("[EXECUTOR] finality review raised scope=%s score=%.3f", scope, res.Score)
		return
	}

	status := message.Action{
		ProposalID: uuid.NewString(),
		ApprovedBy: "policy",
		Result:     "approved",
		ActionType: message.ActionFinalityStatus,
		Payload: message.ActionPayload{
			ScopeID: scope,
			Extra: map[string]any{
				"status": string(res.Status),
				"state":  res.State,
				"score":  res.Score,
			},
		},
	}
	if err := e.pub.Publish(bus.ActionSubject(message.ActionFinalityStatus), status); err != nil {
		log.Printf("[EXECUTOR] publish finality status scope=%s: %v", scope, err)
		return
	}
	log.Printf("[EXECUTOR] finality scope=%s status=%s state=%s", scope, res.Status, res.State)
}

// recordFinality appends a human finality resolution to the decision log.
// The next cycle-head evaluation picks it up.
func (e *Executor) recordFinality(a message.Action) error {
	option := finality.Option(a.Payload.Option)
	if err := e.decisions.Record(a.Payload.ScopeID, option, a.Payload.Days); err != nil {
		return fmt.Errorf("record finality %s: %w", a.ProposalID, err)
	}
	log.Printf("[EXECUTOR] finality decision scope=%s option=%s", a.Payload.ScopeID, option)
	return nil
}

// #endregion finality
