package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
)

func snapshot(code string, progress float64, outcome orchestrator.Outcome) orchestrator.Snapshot {
	return orchestrator.Snapshot{
		Instrument: code,
		Progress:   progress,
		Outcome:    outcome,
		State:      orchestrator.StateAnalyzing,
	}
}

func TestHub_KeepsLatestPerInstrument(t *testing.T) {
	hub := NewHub(nil)

	_, ok := hub.Latest("600519")
	assert.False(t, ok)

	hub.Report(snapshot("600519", 40, orchestrator.OutcomeRunning))
	hub.Report(snapshot("600519", 100, orchestrator.OutcomeSucceeded))
	hub.Report(snapshot("000001", 10, orchestrator.OutcomeRunning))

	snap, ok := hub.Latest("600519")
	require.True(t, ok)
	assert.Equal(t, 100.0, snap.Progress)
	assert.True(t, snap.Terminal())

	other, ok := hub.Latest("000001")
	require.True(t, ok)
	assert.Equal(t, 10.0, other.Progress)
}

func TestHub_SubscribeReceivesOnlyItsInstrument(t *testing.T) {
	hub := NewHub(nil)
	updates, unsubscribe := hub.Subscribe("600519")

	hub.Report(snapshot("000001", 10, orchestrator.OutcomeRunning))
	hub.Report(snapshot("600519", 50, orchestrator.OutcomeRunning))

	select {
	case snap := <-updates:
		assert.Equal(t, "600519", snap.Instrument)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	assert.Equal(t, 1, hub.Subscribers("600519"))
	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, hub.Subscribers("600519"))

	_, open := <-updates
	assert.False(t, open)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	_, unsubscribe := hub.Subscribe("600519")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberQ*3; i++ {
			hub.Report(snapshot("600519", float64(i), orchestrator.OutcomeRunning))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a full subscriber")
	}
}

func TestHub_LaggingSubscriberStillGetsTerminalSnapshot(t *testing.T) {
	hub := NewHub(nil)
	updates, unsubscribe := hub.Subscribe("600519")
	defer unsubscribe()

	for i := 0; i < subscriberQ+4; i++ {
		hub.Report(snapshot("600519", float64(i), orchestrator.OutcomeRunning))
	}
	hub.Report(snapshot("600519", 100, orchestrator.OutcomeSucceeded))

	var received []orchestrator.Snapshot
	for len(received) < subscriberQ {
		select {
		case snap := <-updates:
			received = append(received, snap)
		case <-time.After(time.Second):
			t.Fatalf("only %d snapshots queued", len(received))
		}
	}

	last := received[len(received)-1]
	assert.True(t, last.Terminal())
	assert.Equal(t, 100.0, last.Progress)
	// the oldest snapshots were dropped, the newest running ones kept in order
	assert.Equal(t, 5.0, received[0].Progress)
	assert.Equal(t, float64(subscriberQ+3), received[len(received)-2].Progress)
}

func TestHub_ServeWSStreamsSnapshots(t *testing.T) {
	hub := NewHub(nil)
	hub.Report(snapshot("600519", 20, orchestrator.OutcomeRunning))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeWS(w, r, "600519")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first orchestrator.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 20.0, first.Progress)

	// wait until the handler has subscribed before publishing
	require.Eventually(t, func() bool { return hub.Subscribers("600519") == 1 }, time.Second, 10*time.Millisecond)
	hub.Report(snapshot("600519", 100, orchestrator.OutcomeSucceeded))

	var next orchestrator.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, orchestrator.OutcomeSucceeded, next.Outcome)
}
