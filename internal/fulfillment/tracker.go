package fulfillment

import "github.com/angelmondragon/orderdesk-backend/pkg/enums"

// Step is one position on the customer tracker.
type Step struct {
	Status enums.OrderStatus `json:"status"`
	Label  string            `json:"label"`
}

// Tracker is the customer-facing progress view of an order.
type Tracker struct {
	Status       enums.OrderStatus  `json:"status"`
	StatusLabel  string             `json:"statusLabel"`
	DeliveryType enums.DeliveryType `json:"deliveryType"`
	Steps        []Step             `json:"steps"`
	CurrentStep  int                `json:"currentStep"`
	Cancelled    bool               `json:"cancelled"`
	Completed    bool               `json:"completed"`
}

// trackerSteps drops awaiting_payment: it shares the position of new.
func trackerSteps(deliveryType enums.DeliveryType) []Step {
	branch := Branch(deliveryType)
	steps := make([]Step, 0, len(branch)-1)
	for _, status := range branch {
		if status == enums.OrderStatusAwaitingPayment {
			continue
		}
		steps = append(steps, Step{Status: status, Label: status.Label()})
	}
	return steps
}

// Track maps status onto the tracker of the order's branch. A cancelled order has
// no steps and CurrentStep -1.
func Track(deliveryType enums.DeliveryType, status enums.OrderStatus) Tracker {
	t := Tracker{
		Status:       status,
		StatusLabel:  status.Label(),
		DeliveryType: deliveryType,
		CurrentStep:  -1,
	}
	if status == enums.OrderStatusCancelled {
		t.Cancelled = true
		return t
	}

	t.Steps = trackerSteps(deliveryType)
	lookup := status
	if lookup == enums.OrderStatusAwaitingPayment {
		lookup = enums.OrderStatusNew
	}
	for i, step := range t.Steps {
		if step.Status == lookup {
			t.CurrentStep = i
			break
		}
	}
	if t.CurrentStep < 0 && (status == enums.OrderStatusOutForDelivery || status == enums.OrderStatusReadyForPickup) {
		// dispatch state from the other branch sits on this branch's dispatch step
		t.CurrentStep = len(t.Steps) - 2
	}
	t.Completed = status == enums.OrderStatusDelivered
	return t
}
