package bus

import "testing"

func TestSubjectMapping(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{ProposalSubject("advance_state"), "swarm.proposals.advance_state"},
		{ActionSubject("transition"), "swarm.actions.transition"},
		{RejectionSubject("prop-1"), "swarm.rejections.prop-1"},
		{JobSubject("FactsExtracted"), "swarm.jobs.FactsExtracted"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("expected %s, got %s", c.want, c.got)
		}
	}
}
