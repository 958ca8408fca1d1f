package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keypart/internal/store"
	"github.com/dreamware/keypart/internal/sync2"
	"github.com/dreamware/keypart/internal/wire"
	"github.com/dreamware/keypart/internal/worker"
)

func runInBackground(t *testing.T, w *worker.Worker) (context.Context, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	return ctx, func() {
		w.Shutdown()
		cancel()
		<-done
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	st := store.New()
	w := worker.New(0, st)
	_, stop := runInBackground(t, w)
	defer stop()

	replies := make(chan wire.ReplyMessage, 2)
	w.Push(wire.ClientMessage{ID: 1, Kind: wire.Write, Key: 1, Args: []byte("x"), ReplyTo: func(r wire.ReplyMessage) { replies <- r }})
	w.Push(wire.ClientMessage{ID: 2, Kind: wire.Read, Key: 1, ReplyTo: func(r wire.ReplyMessage) { replies <- r }})

	writeReply := <-replies
	assert.Equal(t, "x", writeReply.Answer)
	readReply := <-replies
	assert.Equal(t, "x", readReply.Answer)

	assert.Equal(t, []int64{1}, w.Keys())
	// the executed counter is bumped after the reply callback returns.
	require.Eventually(t, func() bool { return w.GetStats().Executed == 2 }, time.Second, time.Millisecond)
}

func TestScanReturnsCommaJoinedValues(t *testing.T) {
	st := store.New()
	st.Write(0, []byte("a"))
	st.Write(1, []byte("b"))
	w := worker.New(0, st)
	_, stop := runInBackground(t, w)
	defer stop()

	replies := make(chan wire.ReplyMessage, 1)
	w.Push(wire.ClientMessage{ID: 1, Kind: wire.Scan, Key: 0, Args: []byte("2"), ReplyTo: func(r wire.ReplyMessage) { replies <- r }})

	reply := <-replies
	assert.Equal(t, "a,b,", reply.Answer)
}

func TestErrorKindRepliesError(t *testing.T) {
	st := store.New()
	w := worker.New(0, st)
	_, stop := runInBackground(t, w)
	defer stop()

	replies := make(chan wire.ReplyMessage, 1)
	w.Push(wire.ClientMessage{ID: 1, Kind: wire.Error, ReplyTo: func(r wire.ReplyMessage) { replies <- r }})

	reply := <-replies
	assert.Equal(t, "ERROR", reply.Answer)
}

func TestRecordTimestampAppendsSample(t *testing.T) {
	st := store.New()
	w := worker.New(0, st)
	_, stop := runInBackground(t, w)
	defer stop()

	replies := make(chan wire.ReplyMessage, 1)
	w.Push(wire.ClientMessage{ID: 5, Kind: wire.Write, Key: 1, Args: []byte("x"), RecordTimestamp: true, ReplyTo: func(r wire.ReplyMessage) { replies <- r }})
	<-replies

	require.Eventually(t, func() bool { return len(w.Timestamps()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(5), w.Timestamps()[0].ID)
}

func TestSyncMessageProducesNoReplyAndReleasesBarrier(t *testing.T) {
	st := store.New()
	w1 := worker.New(0, st)
	w2 := worker.New(1, st)
	_, stop1 := runInBackground(t, w1)
	_, stop2 := runInBackground(t, w2)
	defer stop1()
	defer stop2()

	b := sync2.NewBarrier(2, true)
	replies := make(chan wire.ReplyMessage, 2)
	reply := func(r wire.ReplyMessage) { replies <- r }

	w1.Push(wire.ClientMessage{Kind: wire.Sync, Barrier: b})
	w1.Push(wire.ClientMessage{ID: 1, Kind: wire.Read, Key: 0, ReplyTo: reply})
	w2.Push(wire.ClientMessage{Kind: wire.Sync, Barrier: b})
	w2.Push(wire.ClientMessage{ID: 2, Kind: wire.Read, Key: 0, ReplyTo: reply})

	// each worker must process its post-SYNC message, proving the barrier
	// released both of them rather than wedging either queue.
	for i := 0; i < 2; i++ {
		select {
		case <-replies:
		case <-time.After(time.Second):
			t.Fatal("both workers should have rendezvoused and drained their queues")
		}
	}
}

func TestSetKeysReplacesMembership(t *testing.T) {
	st := store.New()
	w := worker.New(0, st)
	w.SetKeys([]int64{3, 1, 2})
	assert.Equal(t, []int64{1, 2, 3}, w.Keys())
}
