package pio

import (
	"time"

	"go.uber.org/atomic"

	"tmcuart/protocol"
)

type pulseTrain struct {
	count   uint32
	period  time.Duration
	reverse bool
	gen     uint32
}

// trainQueue hands pulse trains to a software worker. Every train carries
// the generation it was queued in; cancel moves to a new generation, so a
// train the worker already holds stops at its next pulse.
type trainQueue struct {
	trains  chan pulseTrain
	gen     *atomic.Uint32
	pending *atomic.Uint32
}

func newTrainQueue(depth int) *trainQueue {
	return &trainQueue{
		trains:  make(chan pulseTrain, depth),
		gen:     atomic.NewUint32(0),
		pending: atomic.NewUint32(0),
	}
}

// push queues a train without blocking
func (q *trainQueue) push(count uint32, period time.Duration, reverse bool) error {
	q.pending.Inc()
	select {
	case q.trains <- pulseTrain{count: count, period: period, reverse: reverse, gen: q.gen.Load()}:
		return nil
	default:
		q.pending.Dec()
		depth := int64(cap(q.trains))
		return &protocol.OutOfRangeError{Quantity: "queued pulse trains", Value: depth + 1, Min: 0, Max: depth}
	}
}

// cancel abandons the running train and drops queued ones
func (q *trainQueue) cancel() {
	q.gen.Inc()
	for {
		select {
		case <-q.trains:
			q.pending.Dec()
		default:
			return
		}
	}
}

func (q *trainQueue) live(tr pulseTrain) bool {
	return tr.gen == q.gen.Load()
}

func (q *trainQueue) busy() bool {
	return q.pending.Load() > 0
}

// serve runs trains until the queue is closed
func (q *trainQueue) serve(drive func(reverse bool), pulse func(), wait func(time.Duration)) {
	for tr := range q.trains {
		if q.live(tr) {
			drive(tr.reverse)
			for i := uint32(0); i < tr.count && q.live(tr); i++ {
				pulse()
				wait(tr.period)
			}
		}
		q.pending.Dec()
	}
}
