package pio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmcuart/protocol"
)

const gpioTestDepth = 4

func TestTrainQueueStopThenStart(t *testing.T) {
	q := newTrainQueue(gpioTestDepth)

	var reverse bool
	pulses := map[bool]int{}
	waiting := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.serve(
			func(r bool) { reverse = r },
			func() { pulses[reverse]++ },
			func(time.Duration) {
				once.Do(func() {
					close(waiting)
					<-resume
				})
			},
		)
	}()

	require.NoError(t, q.push(1000, time.Millisecond, true))
	<-waiting // the worker holds the long train

	q.cancel()
	require.NoError(t, q.push(3, time.Millisecond, false))
	close(resume)

	require.Eventually(t, func() bool { return !q.busy() }, time.Second, time.Millisecond)
	close(q.trains)
	<-done

	assert.Equal(t, 1, pulses[true], "cancelled train kept running")
	assert.Equal(t, 3, pulses[false])
}

func TestTrainQueueCancelDropsQueued(t *testing.T) {
	q := newTrainQueue(gpioTestDepth)
	for i := 0; i < gpioTestDepth; i++ {
		require.NoError(t, q.push(10, time.Millisecond, false))
	}
	err := q.push(10, time.Millisecond, false)
	var oor *protocol.OutOfRangeError
	require.True(t, errors.As(err, &oor))
	assert.Equal(t, int64(gpioTestDepth), oor.Max)
	assert.True(t, q.busy())

	q.cancel()
	assert.False(t, q.busy())
	assert.Empty(t, q.trains)

	// Nothing from before the cancel reaches the worker
	require.NoError(t, q.push(2, time.Millisecond, true))
	close(q.trains)
	count := 0
	q.serve(func(bool) {}, func() { count++ }, func(time.Duration) {})
	assert.Equal(t, 2, count)
	assert.False(t, q.busy())
}
