package enum

// Outcome is the terminal state of one message processor invocation.
type Outcome string

const (
	OutcomeClaimFailed    Outcome = "claim-failed"
	OutcomeClaimStuck     Outcome = "claim-stuck"
	OutcomeAlreadyDone    Outcome = "already-done"
	OutcomeNoAudio        Outcome = "no-audio"
	OutcomeAllFailed      Outcome = "all-failed"
	OutcomePublishFailed  Outcome = "publish-failed"
	OutcomeCompleteFailed Outcome = "complete-failed"
	OutcomeSuccess        Outcome = "success"
)

func (o Outcome) String() string {
	return string(o)
}

// ReachesDone reports whether the message is expected to end in the Done folder.
func (o Outcome) ReachesDone() bool {
	return o == OutcomeSuccess || o == OutcomeAlreadyDone
}

// RunCounter maps an outcome to the counter it increments in a run summary.
type RunCounter string

const (
	CounterProcessed RunCounter = "processed"
	CounterSkipped   RunCounter = "skipped"
	CounterFailed    RunCounter = "failed"
)

func (o Outcome) Counter() RunCounter {
	switch o {
	case OutcomeSuccess:
		return CounterProcessed
	case OutcomeAlreadyDone, OutcomeClaimFailed:
		return CounterSkipped
	default:
		return CounterFailed
	}
}
