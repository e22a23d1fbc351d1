package fetch

// batchState tracks one batch through its retry lifecycle. The only
// re-entry transition is stateRetryScheduled -> stateInFlight, bounded by
// the retry budget.
type batchState int

const (
	statePending batchState = iota
	stateInFlight
	stateRetryScheduled
	stateSucceeded
	stateFailed
)

func (s batchState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateInFlight:
		return "in-flight"
	case stateRetryScheduled:
		return "retry-scheduled"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// batch is one bounded-size request to the upstream source, retried as a
// unit. The seed stays stable across retries so repeated attempts for the
// same logical batch are idempotent from the upstream's point of view.
type batch struct {
	id       int
	seed     int64
	quantity int
	state    batchState
	attempt  int
}

// partition splits total into ceil(total/batchSize) batches. The final
// batch carries only the remainder.
func partition(total, batchSize int, seedBase int64) []*batch {
	count := (total + batchSize - 1) / batchSize
	batches := make([]*batch, 0, count)
	remaining := total
	for i := 0; i < count; i++ {
		quantity := batchSize
		if remaining < batchSize {
			quantity = remaining
		}
		batches = append(batches, &batch{
			id:       i,
			seed:     seedBase + int64(i),
			quantity: quantity,
			state:    statePending,
		})
		remaining -= quantity
	}
	return batches
}
