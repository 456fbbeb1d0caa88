package orderstatus

import "time"

// Flow is one of the three disjoint status sequences.
type Flow string

const (
	FlowFulfillment  Flow = "fulfillment"
	FlowReturn       Flow = "return"
	FlowCancellation Flow = "cancellation"
)

// PendingDate is shown for steps without a recorded date.
const PendingDate = "Pending"

const dateLayout = "2006-01-02"

var flows = map[Flow][]Status{
	FlowFulfillment:  {OrderPlaced, Processing, Shipped, Delivered},
	FlowReturn:       {Delivered, ReturnAccepted, ReturnPickedUp, RefundCompleted},
	FlowCancellation: {OrderPlaced, Cancelled},
}

// Timeline holds the time each status was first reached.
type Timeline map[Status]time.Time

type TrackingStep struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Date      string `json:"date"`
}

type Tracking struct {
	Status Status         `json:"status"`
	Flow   Flow           `json:"flow"`
	Step   int            `json:"trackingStep"`
	Steps  []TrackingStep `json:"steps"`
}

// FlowOf returns the flow a status belongs to and its 1-based position in it.
// ok is false for statuses outside every flow.
func FlowOf(s Status) (flow Flow, step int, ok bool) {
	switch s {
	case OrderPlaced, Processing, Shipped, Delivered:
		flow = FlowFulfillment
	case ReturnAccepted, ReturnPickedUp, RefundCompleted:
		flow = FlowReturn
	case Cancelled:
		flow = FlowCancellation
	default:
		return FlowFulfillment, 1, false
	}
	for i, st := range flows[flow] {
		if st == s {
			return flow, i + 1, true
		}
	}
	return FlowFulfillment, 1, false
}

// Track normalizes raw and lays out the steps of its flow. Unknown statuses
// render the fulfillment flow at step 1 and keep their verbatim Status.
func Track(raw string, timeline Timeline) Tracking {
	status := Normalize(raw)
	flow, step, _ := FlowOf(status)

	sequence := flows[flow]
	steps := make([]TrackingStep, len(sequence))
	for i, st := range sequence {
		date := PendingDate
		if t, ok := timeline[st]; ok && !t.IsZero() {
			date = t.Format(dateLayout)
		}
		steps[i] = TrackingStep{
			Label:     st.Label(),
			Completed: i < step,
			Date:      date,
		}
	}

	return Tracking{Status: status, Flow: flow, Step: step, Steps: steps}
}
