package fulfillment

import (
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
)

var (
	deliveryBranch = []enums.OrderStatus{
		enums.OrderStatusNew,
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	}
	pickupBranch = []enums.OrderStatus{
		enums.OrderStatusNew,
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusPreparing,
		enums.OrderStatusReadyForPickup,
		enums.OrderStatusDelivered,
	}
)

// Branch returns the ordered lifecycle for the delivery type. Unknown types follow
// the delivery branch.
func Branch(deliveryType enums.DeliveryType) []enums.OrderStatus {
	src := deliveryBranch
	if deliveryType == enums.DeliveryTypePickup {
		src = pickupBranch
	}
	out := make([]enums.OrderStatus, len(src))
	copy(out, src)
	return out
}

// OperatorActions lists the statuses an operator may move the order to: every later
// state on its own branch, plus cancelled while the order is not terminal. The other
// branch's dispatch state is never offered.
func OperatorActions(deliveryType enums.DeliveryType, status enums.OrderStatus) []enums.OrderStatus {
	if status.IsTerminal() || !status.IsValid() {
		return nil
	}
	branch := Branch(deliveryType)
	pos := indexOf(branch, status)

	var actions []enums.OrderStatus
	if pos >= 0 {
		actions = append(actions, branch[pos+1:]...)
	} else {
		// a cross-branch state written directly to the store still finishes normally
		actions = append(actions, enums.OrderStatusDelivered)
	}
	return append(actions, enums.OrderStatusCancelled)
}

// CanTransition reports whether target is among OperatorActions for the order.
func CanTransition(deliveryType enums.DeliveryType, from, to enums.OrderStatus) bool {
	return indexOf(OperatorActions(deliveryType, from), to) >= 0
}

// ValidateTransition returns a state conflict error when the operator menu would not
// offer target.
func ValidateTransition(deliveryType enums.DeliveryType, from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status inválido: %s", to))
	}
	if CanTransition(deliveryType, from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "transição de status não permitida").
		WithDetails(map[string]any{
			"from":          from,
			"to":            to,
			"delivery_type": deliveryType,
		})
}

func indexOf(list []enums.OrderStatus, status enums.OrderStatus) int {
	for i, candidate := range list {
		if candidate == status {
			return i
		}
	}
	return -1
}
