package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/triad-labs/triad/pkg/artifacts"
	"github.com/triad-labs/triad/pkg/chain"
	"github.com/triad-labs/triad/pkg/validator"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Outcome
	}{
		{"prerequisite", missing("proof package digest"), OutcomeMissingPrerequisite},
		{"user rejected", fmt.Errorf("sign: %w", chain.ErrUserRejected), OutcomeUserRejected},
		{"revert", &chain.RevertError{Reason: "FeedbackNotAuthorized"}, OutcomeTransactionReverted},
		{"rpc timeout", &chain.RPCError{Op: "wait-receipt", Err: errors.New("deadline")}, OutcomeRPCError},
		{"artifact missing", fmt.Errorf("get: %w", artifacts.ErrNotFound), OutcomeArtifactNotFound},
		{"package missing", fmt.Errorf("%w: abc", validator.ErrPackageNotFound), OutcomeArtifactNotFound},
		{"anything else", errors.New("boom"), OutcomeFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestResult_String(t *testing.T) {
	r := Result{Step: StepSubmitFeedback, Outcome: OutcomeOK}
	assert.Equal(t, "submit-feedback: ok", r.String())

	r = Result{Step: StepLoadInput, Outcome: OutcomeFailed, Err: errors.New("no such file")}
	assert.Contains(t, r.String(), "no such file")
}
