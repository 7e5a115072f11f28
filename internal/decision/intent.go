package decision

import "errors"

// Action is the decoded trade action.
type Action string

const (
	ActionHold Action = "HOLD"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

var (
	// ErrModelUnavailable means no model/scaler pair is registered for the group.
	ErrModelUnavailable = errors.New("decision: model unavailable for group")
	// ErrDecisionFailed means the model errored or produced a malformed output.
	ErrDecisionFailed = errors.New("decision: model output unusable")
)

// TradeIntent is one instrument's decoded decision for the current cycle.
type TradeIntent struct {
	Symbol     string  `json:"symbol"`
	Group      string  `json:"group"`
	Action     Action  `json:"action"`
	Size       float64 `json:"size"`
	Confidence float64 `json:"confidence"`
}

func actionFromClass(class int) (Action, bool) {
	switch class {
	case 0:
		return ActionHold, true
	case 1:
		return ActionBuy, true
	case 2:
		return ActionSell, true
	default:
		return "", false
	}
}
