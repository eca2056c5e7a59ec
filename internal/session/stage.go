package session

import (
	"context"

	"interiorDesignAi/internal/design"
)

// Status is the lifecycle of one stage.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Stage names one of the five independently tracked operations.
type Stage string

const (
	StageEstimate       Stage = "estimate"
	StageAnalysis       Stage = "analysis"
	StagePhotorealistic Stage = Stage(design.ViewPhotorealistic)
	StageThreeD         Stage = Stage(design.ViewThreeD)
	StageTwoD           Stage = Stage(design.ViewTwoD)
)

// Stages lists every stage in display order.
func Stages() []Stage {
	return []Stage{StageEstimate, StageAnalysis, StagePhotorealistic, StageThreeD, StageTwoD}
}

// StageState is the externally visible state of a stage.
type StageState struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

func idle() StageState      { return StageState{Status: StatusIdle} }
func succeeded() StageState { return StageState{Status: StatusSucceeded} }

func failed(err error) StageState {
	return StageState{Status: StatusFailed, Error: Message(err)}
}

// slot owns one stage. token identifies the current run so that results of
// superseded runs are discarded.
type slot struct {
	state  StageState
	token  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func newSlot() slot {
	return slot{state: idle()}
}

// begin cancels any run in flight and starts a new pending one.
func (sl *slot) begin(parent context.Context) (context.Context, uint64, chan struct{}) {
	sl.stop()
	ctx, cancel := context.WithCancel(parent)
	sl.token++
	sl.cancel = cancel
	sl.done = make(chan struct{})
	sl.state = StageState{Status: StatusPending}
	return ctx, sl.token, sl.done
}

func (sl *slot) stop() {
	if sl.cancel != nil {
		sl.cancel()
		sl.cancel = nil
	}
}

// reset returns the slot to idle and orphans any run in flight.
func (sl *slot) reset() {
	sl.stop()
	sl.token++
	sl.done = nil
	sl.state = idle()
}

// finish stores the outcome of run token; false means the run was superseded.
func (sl *slot) finish(token uint64, state StageState) bool {
	if token != sl.token {
		return false
	}
	sl.stop()
	sl.state = state
	return true
}

// wait returns a channel closed once the current run ends. Slots without a
// run in flight return an already closed channel.
func (sl *slot) wait() <-chan struct{} {
	if sl.state.Status == StatusPending && sl.done != nil {
		return sl.done
	}
	return closedChan
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
