package mitl

import (
	"errors"
	"fmt"
	"log"

	"github.com/danielpatrickdp/swarm-governor/internal/finality"
	"github.com/danielpatrickdp/swarm-governor/internal/message"
)

// #region errors
var (
	// ErrNotFound reports an id absent from the pending set.
	ErrNotFound = errors.New("not_found")
	// ErrUseFinalityResponse reports an approve attempt on a finality-review
	// item, which must go through the finality endpoint instead.
	ErrUseFinalityResponse = errors.New("use_finality_response")
	// ErrNotFinalityReview reports a finality resolution on a non-finality item.
	ErrNotFinalityReview = errors.New("not_finality_review")
	// ErrInvalidOption reports an unknown finality option.
	ErrInvalidOption = errors.New("invalid_option")
)

// #endregion errors

// #region server
// Server owns the pending set and exposes the operator decision operations.
// Side effects are the two injected publish functions; the server never talks
// to the bus directly.
type Server struct {
	pending          PendingStore
	publishAction    func(message.Action) error
	publishRejection func(message.Rejection) error
}

// NewServer wires the server to its pending store and publish functions.
func NewServer(pending PendingStore, publishAction func(message.Action) error, publishRejection func(message.Rejection) error) *Server {
	return &Server{
		pending:          pending,
		publishAction:    publishAction,
		publishRejection: publishRejection,
	}
}

// #endregion server

// #region add-pending
// AddPending queues a proposal for human review. Overwrite-by-id; no other
// uniqueness enforcement.
func (s *Server) AddPending(id string, proposal message.Proposal, action message.Action) {
	s.pending.Insert(id, PendingItem{Proposal: proposal, Action: action})
	log.Printf("[MITL] pending %s from agent=%s action=%s", id, proposal.Agent, proposal.ProposedAction)
}

// Pending snapshots the queue for operator visibility.
func (s *Server) Pending() []PendingEntry {
	return s.pending.List()
}

// #endregion add-pending

// #region approve
// ApprovePending publishes the queued action as human-approved and removes
// the item. The item stays pending if publishing fails.
func (s *Server) ApprovePending(id string) error {
	item, ok := s.pending.Get(id)
	if !ok {
		return ErrNotFound
	}
	if item.Proposal.ProposedAction == message.ProposalFinalityReview {
		return ErrUseFinalityResponse
	}

	action := item.Action
	action.Result = "approved"
	action.ApprovedBy = "human"
	if err := s.publishAction(action); err != nil {
		return fmt.Errorf("publish approval %s: %w", id, err)
	}
	s.pending.Remove(id)
	log.Printf("[MITL] approved %s", id)
	return nil
}

// #endregion approve

// #region reject
// RejectPending publishes a rejection and removes the item.
func (s *Server) RejectPending(id, reason string) error {
	if _, ok := s.pending.Get(id); !ok {
		return ErrNotFound
	}
	if reason == "" {
		reason = "rejected by operator"
	}

	rej := message.Rejection{ProposalID: id, Reason: reason, Result: "rejected"}
	if err := s.publishRejection(rej); err != nil {
		return fmt.Errorf("publish rejection %s: %w", id, err)
	}
	s.pending.Remove(id)
	log.Printf("[MITL] rejected %s: %s", id, reason)
	return nil
}

// #endregion reject

// #region finality
// ResolveFinalityPending publishes a finality action carrying the operator's
// chosen option and removes the item. defer without a usable days value
// defaults to 7.
func (s *Server) ResolveFinalityPending(id string, option finality.Option, days int) error {
	item, ok := s.pending.Get(id)
	if !ok {
		return ErrNotFound
	}
	if item.Proposal.ProposedAction != message.ProposalFinalityReview {
		return ErrNotFinalityReview
	}
	if !finality.ValidOption(option) {
		return ErrInvalidOption
	}
	if option == finality.OptionDefer && days <= 0 {
		days = 7
	}

	payload := item.Action.Payload
	payload.Option = string(option)
	payload.Days = days

	action := message.Action{
		ProposalID: id,
		ApprovedBy: "human",
		Result:     "approved",
		ActionType: message.ActionFinality,
		Payload:    payload,
	}
	if err := s.publishAction(action); err != nil {
		return fmt.Errorf("publish finality resolution %s: %w", id, err)
	}
	s.pending.Remove(id)
	log.Printf("[MITL] finality %s resolved as %s", id, option)
	return nil
}

// #endregion finality
