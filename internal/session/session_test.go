package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netpulse/internal/analytics"
	"netpulse/internal/config"
	"netpulse/internal/models"
	"netpulse/internal/probe"
)

// fixedProber returns a canned result per address.
type fixedProber map[string]probe.Result

func (f fixedProber) Simulate(address string) probe.Result {
	if r, ok := f[address]; ok {
		return r
	}
	return probe.Result{LatencyMs: 10, Status: models.StatusUp}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testNodes = []models.Node{
	{ID: "1", Name: "lo", Address: "127.0.0.1", Category: models.CategoryLocal},
	{ID: "2", Name: "gw", Address: "192.168.1.1", Category: models.CategoryGateway},
	{ID: "3", Name: "far", Address: "203.0.113.9", Category: models.CategoryWAN},
}

func newTestController(t *testing.T, prober Prober) (*Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	ids := 0
	ctl := NewController(testNodes, prober, time.UTC,
		WithClock(clock.Now),
		WithIDs(func() string { ids++; return "session-" + string(rune('0'+ids)) }),
	)
	return ctl, clock
}

func TestState_Lifecycle(t *testing.T) {
	t.Parallel()

	s := NewState(testNodes)
	assert.Equal(t, PhaseIdle, s.Phase)

	_, _, err := Tick(s, 1, fixedProber{}, time.UTC)
	require.ErrorIs(t, err, ErrNotMonitoring)
	_, _, err = Stop(s, 1)
	require.ErrorIs(t, err, ErrNotMonitoring)

	s, err = Start(s, 1000, "abc")
	require.NoError(t, err)
	assert.Equal(t, PhaseMonitoring, s.Phase)
	assert.Equal(t, analytics.Baseline(), s.View.Live)

	_, err = Start(s, 2000, "def")
	require.ErrorIs(t, err, ErrNotIdle)
	_, err = SetNodes(s, testNodes[:1])
	require.ErrorIs(t, err, ErrNotIdle)
	_, err = CloseSummary(s)
	require.ErrorIs(t, err, ErrNotIdle)

	s, batch, err := Tick(s, 2000, fixedProber{}, time.UTC)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, r := range batch {
		assert.Equal(t, int64(2000), r.Timestamp)
		assert.Equal(t, testNodes[i].ID, r.NodeID)
	}

	s, sess, err := Stop(s, 3000)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.True(t, s.SummaryVisible)
	assert.Equal(t, "abc", sess.ID)
	assert.Equal(t, int64(1000), sess.StartTime)
	assert.Equal(t, int64(3000), sess.EndTime)
	assert.Len(t, sess.Records, 3)

	s, err = CloseSummary(s)
	require.NoError(t, err)
	assert.False(t, s.SummaryVisible)
	assert.Nil(t, s.Session)
	assert.Equal(t, analytics.Baseline(), s.View.Session)
}

func TestState_StartClearsPreviousSession(t *testing.T) {
	t.Parallel()

	s, err := Start(NewState(testNodes), 0, "one")
	require.NoError(t, err)
	s, _, err = Tick(s, 1000, fixedProber{}, time.UTC)
	require.NoError(t, err)
	s, _, err = Stop(s, 2000)
	require.NoError(t, err)

	s, err = Start(s, 5000, "two")
	require.NoError(t, err)
	assert.False(t, s.SummaryVisible)
	assert.Equal(t, "two", s.Session.ID)
	assert.Empty(t, s.Session.Records)
}

func TestState_ZeroNodesTick(t *testing.T) {
	t.Parallel()

	s, err := Start(NewState(nil), 0, "empty")
	require.NoError(t, err)
	s, batch, err := Tick(s, 1000, fixedProber{}, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Empty(t, s.Session.Records)
	assert.Equal(t, analytics.Baseline(), s.View.Session)
}

func TestState_StoppedSessionIsFrozen(t *testing.T) {
	t.Parallel()

	s, _ := Start(NewState(testNodes), 0, "x")
	s, _, _ = Tick(s, 1000, fixedProber{}, time.UTC)
	s, sess, err := Stop(s, 2000)
	require.NoError(t, err)

	sess.Records[0].LatencyMs = 9999
	assert.Equal(t, 10, s.Session.Records[0].LatencyMs)
}

func TestSetNodesAndAddNode(t *testing.T) {
	t.Parallel()

	s := NewState(testNodes)
	_, err := SetNodes(s, []models.Node{testNodes[0], testNodes[0]})
	require.ErrorIs(t, err, config.ErrDuplicateNodeID)

	s, added, err := AddNode(s, models.Node{Address: "9.9.9.9"})
	require.NoError(t, err)
	assert.Equal(t, "4", added.ID)
	assert.Equal(t, "New Node", added.Name)
	assert.Equal(t, models.CategoryWAN, added.Category)
	assert.Len(t, s.Nodes, 4)

	_, _, err = AddNode(s, models.Node{ID: "4", Address: "1.1.1.1"})
	require.ErrorIs(t, err, config.ErrDuplicateNodeID)
}

func TestController_LiveAndSessionStats(t *testing.T) {
	t.Parallel()

	ctl, clock := newTestController(t, fixedProber{
		"127.0.0.1":   {LatencyMs: 1, Status: models.StatusUp},
		"192.168.1.1": {LatencyMs: 5, Status: models.StatusUp},
		"203.0.113.9": {LatencyMs: 300, Status: models.StatusUp},
	})

	sess, err := ctl.Start()
	require.NoError(t, err)
	assert.Equal(t, "session-1", sess.ID)

	for i := 0; i < 90; i++ {
		clock.Advance(time.Second)
		_, _, err := ctl.Tick()
		require.NoError(t, err)
	}

	snap := ctl.Snapshot()
	assert.Equal(t, PhaseMonitoring, snap.Phase)
	assert.Equal(t, 270, snap.RecordCount)
	assert.Len(t, snap.Chart, analytics.ChartBuckets)
	assert.Len(t, snap.Anomalies, analytics.AnomalyLimit)
	assert.Equal(t, 102, snap.Session.AvgLatencyMs)
	assert.Equal(t, 300, snap.Live.MaxLatencyMs)
	require.Len(t, snap.Topology, 3)
	assert.Equal(t, models.HealthDegraded, snap.Topology[2].Health)

	live, err := ctl.Session()
	require.NoError(t, err)
	assert.Len(t, analytics.LiveWindow(live.Records, clock.Now().UnixMilli()), 180)
}

func TestController_StopAndClose(t *testing.T) {
	t.Parallel()

	ctl, clock := newTestController(t, fixedProber{})
	_, err := ctl.Session()
	require.ErrorIs(t, err, ErrNoSession)

	_, err = ctl.Start()
	require.NoError(t, err)
	require.ErrorIs(t, ctl.SetNodes(testNodes[:1]), ErrNotIdle)

	clock.Advance(time.Second)
	_, _, err = ctl.Tick()
	require.NoError(t, err)
	clock.Advance(500 * time.Millisecond)

	sess, err := ctl.Stop()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), sess.EndTime-sess.StartTime)
	assert.True(t, sess.Closed())

	_, _, err = ctl.Tick()
	require.ErrorIs(t, err, ErrNotMonitoring)

	snap := ctl.Snapshot()
	assert.True(t, snap.SummaryVisible)
	assert.Equal(t, 3, snap.RecordCount)

	require.NoError(t, ctl.CloseSummary())
	snap = ctl.Snapshot()
	assert.False(t, snap.SummaryVisible)
	assert.Zero(t, snap.RecordCount)
	assert.Empty(t, snap.SessionID)

	require.NoError(t, ctl.SetNodes(testNodes[:1]))
	assert.Len(t, ctl.Nodes(), 1)
}

func TestController_ConcurrentTicksSerialize(t *testing.T) {
	t.Parallel()

	ctl, _ := newTestController(t, probe.NewSimulator(nil))
	_, err := ctl.Start()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = ctl.Tick()
			_ = ctl.Snapshot()
		}()
	}
	wg.Wait()

	sess, err := ctl.Stop()
	require.NoError(t, err)
	assert.Len(t, sess.Records, 150)
}
