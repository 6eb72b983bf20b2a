package settlement

import (
	"github.com/google/uuid"
	settlementsvc "github.com/travelagency/backoffice/pkg/service/settlement"
)

// SettleRequest is the body of POST /payments/:id/settle.
type SettleRequest struct {
	DatePaid  string `json:"date_paid" validate:"required,datetime=2006-01-02"`
	Reference string `json:"reference" validate:"max=255"`
}

// FollowUpResponse reports one follow-up task.
type FollowUpResponse struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// SettleResponse reports what a settlement posted.
type SettleResponse struct {
	PaymentID             uuid.UUID             `json:"payment_id"`
	Outcome               settlementsvc.Outcome `json:"outcome"`
	MovementID            uuid.UUID             `json:"movement_id"`
	SettlementMovementID  uuid.UUID             `json:"settlement_movement_id"`
	CounterpartMovementID *uuid.UUID            `json:"counterpart_movement_id,omitempty"`
	FXMovementID          *uuid.UUID            `json:"fx_movement_id,omitempty"`
	Warnings              []string              `json:"warnings,omitempty"`
	FollowUps             []FollowUpResponse    `json:"follow_ups"`
}

// ToResponse converts a settlement result and its follow-up outcomes.
func ToResponse(res *settlementsvc.Result, outcomes []settlementsvc.FollowUpOutcome) *SettleResponse {
	if res == nil {
		return nil
	}
	out := &SettleResponse{
		PaymentID:             res.PaymentID,
		Outcome:               res.Outcome,
		MovementID:            res.MovementID,
		SettlementMovementID:  res.SettlementMovementID,
		CounterpartMovementID: res.CounterpartMovementID,
		FXMovementID:          res.FXMovementID,
		Warnings:              res.Warnings,
		FollowUps:             make([]FollowUpResponse, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		f := FollowUpResponse{Name: o.Name}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		out.FollowUps = append(out.FollowUps, f)
	}
	return out
}
