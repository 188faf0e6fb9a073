package mitl

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/swarm-governor/internal/finality"
	"github.com/danielpatrickdp/swarm-governor/internal/message"
)

type capture struct {
	actions    []message.Action
	rejections []message.Rejection
	fail       bool
}

func (c *capture) publishAction(a message.Action) error {
	if c.fail {
		return errors.New("bus down")
	}
	c.actions = append(c.actions, a)
	return nil
}

func (c *capture) publishRejection(r message.Rejection) error {
	if c.fail {
		return errors.New("bus down")
	}
	c.rejections = append(c.rejections, r)
	return nil
}

func newTestServer(t *testing.T) (*Server, *capture) {
	t.Helper()
	c := &capture{}
	return NewServer(NewMemoryStore(), c.publishAction, c.publishRejection), c
}

func transitionItem(id string) (message.Proposal, message.Action) {
	p := message.Proposal{
		ProposalID:     id,
		Agent:          "facts-worker",
		ProposedAction: "advance",
		TargetNode:     "FactsExtracted",
		Mode:           message.ModeMITL,
		Payload:        message.ActionPayload{ScopeID: "default", ExpectedEpoch: 3, To: "FactsExtracted"},
	}
	a := message.Action{
		ProposalID: id,
		ActionType: message.ActionTransition,
		Payload:    p.Payload,
	}
	return p, a
}

func finalityItem(id string) (message.Proposal, message.Action) {
	p := message.Proposal{
		ProposalID:     id,
		Agent:          "governor",
		ProposedAction: message.ProposalFinalityReview,
		Mode:           message.ModeMITL,
		Payload:        message.ActionPayload{ScopeID: "default"},
	}
	a := message.Action{
		ProposalID: id,
		ActionType: message.ActionFinality,
		Payload:    p.Payload,
	}
	return p, a
}

func TestApprovePendingPublishesHumanApprovedAction(t *testing.T) {
	s, c := newTestServer(t)
	p, a := transitionItem("p1")
	s.AddPending("p1", p, a)

	if err := s.ApprovePending("p1"); err != nil {
		t.Fatalf("ApprovePending: %v", err)
	}
	if len(c.actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(c.actions))
	}
	got := c.actions[0]
	if got.ApprovedBy != "human" || got.Result != "approved" {
		t.Fatalf("unexpected approval fields: %+v", got)
	}
	if got.Payload.ExpectedEpoch != 3 {
		t.Fatalf("payload not carried through: %+v", got.Payload)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("item still pending after approval")
	}
}

func TestApprovePendingUnknownID(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.ApprovePending("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApprovePendingKeepsItemWhenPublishFails(t *testing.T) {
	s, c := newTestServer(t)
	p, a := transitionItem("p1")
	s.AddPending("p1", p, a)
	c.fail = true

	if err := s.ApprovePending("p1"); err == nil {
		t.Fatalf("expected publish error")
	}
	if len(s.Pending()) != 1 {
		t.Fatalf("item must stay pending when publish fails")
	}

	c.fail = false
	if err := s.ApprovePending("p1"); err != nil {
		t.Fatalf("retry after bus recovery: %v", err)
	}
}

func TestApprovePendingRefusesFinalityReview(t *testing.T) {
	s, c := newTestServer(t)
	p, a := finalityItem("f1")
	s.AddPending("f1", p, a)

	if err := s.ApprovePending("f1"); !errors.Is(err, ErrUseFinalityResponse) {
		t.Fatalf("expected ErrUseFinalityResponse, got %v", err)
	}
	if len(c.actions) != 0 {
		t.Fatalf("nothing should be published")
	}
	if len(s.Pending()) != 1 {
		t.Fatalf("finality item must stay pending")
	}
}

func TestRejectPendingPublishesRejection(t *testing.T) {
	s, c := newTestServer(t)
	p, a := transitionItem("p1")
	s.AddPending("p1", p, a)

	if err := s.RejectPending("p1", "too risky"); err != nil {
		t.Fatalf("RejectPending: %v", err)
	}
	if len(c.rejections) != 1 || c.rejections[0].Reason != "too risky" {
		t.Fatalf("unexpected rejections: %+v", c.rejections)
	}
	if c.rejections[0].Result != "rejected" {
		t.Fatalf("result field: %+v", c.rejections[0])
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("item still pending after rejection")
	}
}

func TestRejectPendingDefaultReason(t *testing.T) {
	s, c := newTestServer(t)
	p, a := transitionItem("p1")
	s.AddPending("p1", p, a)

	if err := s.RejectPending("p1", ""); err != nil {
		t.Fatalf("RejectPending: %v", err)
	}
	if c.rejections[0].Reason != "rejected by operator" {
		t.Fatalf("default reason missing: %+v", c.rejections[0])
	}
}

func TestResolveFinalityPublishesFinalityAction(t *testing.T) {
	s, c := newTestServer(t)
	p, a := finalityItem("f1")
	s.AddPending("f1", p, a)

	if err := s.ResolveFinalityPending("f1", finality.OptionApproveFinality, 0); err != nil {
		t.Fatalf("ResolveFinalityPending: %v", err)
	}
	if len(c.actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(c.actions))
	}
	got := c.actions[0]
	if got.ActionType != message.ActionFinality || got.ApprovedBy != "human" {
		t.Fatalf("unexpected action: %+v", got)
	}
	if got.Payload.Option != string(finality.OptionApproveFinality) {
		t.Fatalf("option not carried: %+v", got.Payload)
	}
	if len(s.Pending()) != 0 {
		t.Fatalf("item still pending after resolution")
	}
}

func TestResolveFinalityDeferDefaultsDays(t *testing.T) {
	s, c := newTestServer(t)
	p, a := finalityItem("f1")
	s.AddPending("f1", p, a)

	if err := s.ResolveFinalityPending("f1", finality.OptionDefer, 0); err != nil {
		t.Fatalf("ResolveFinalityPending: %v", err)
	}
	if c.actions[0].Payload.Days != 7 {
		t.Fatalf("defer days not defaulted: %+v", c.actions[0].Payload)
	}
}

func TestResolveFinalityTypedErrors(t *testing.T) {
	s, _ := newTestServer(t)
	pt, at := transitionItem("p1")
	s.AddPending("p1", pt, at)
	pf, af := finalityItem("f1")
	s.AddPending("f1", pf, af)

	if err := s.ResolveFinalityPending("ghost", finality.OptionEscalate, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.ResolveFinalityPending("p1", finality.OptionEscalate, 0); !errors.Is(err, ErrNotFinalityReview) {
		t.Fatalf("expected ErrNotFinalityReview, got %v", err)
	}
	if err := s.ResolveFinalityPending("f1", finality.Option("shrug"), 0); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if len(s.Pending()) != 2 {
		t.Fatalf("failed resolutions must not consume items")
	}
}
