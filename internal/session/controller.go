package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"netpulse/internal/analytics"
	"netpulse/internal/models"
)

// Snapshot is a read-only copy of the controller state for consumers.
type Snapshot struct {
	Phase          Phase                  `json:"phase"`
	SummaryVisible bool                   `json:"summaryVisible"`
	SessionID      string                 `json:"sessionId,omitempty"`
	StartTime      int64                  `json:"startTime,omitempty"`
	EndTime        int64                  `json:"endTime,omitempty"`
	RecordCount    int                    `json:"recordCount"`
	Nodes          []models.Node          `json:"nodes"`
	Topology       []models.TopologyEntry `json:"topology"`
	View
}

// Controller serializes all state transitions behind one mutex, so a tick
// runs to completion before a stop or another tick is applied.
type Controller struct {
	mu     sync.Mutex
	state  State
	prober Prober
	loc    *time.Location
	now    func() time.Time
	newID  func() string
}

type Option func(*Controller)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDs overrides session id generation.
func WithIDs(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

func NewController(nodes []models.Node, prober Prober, loc *time.Location, opts ...Option) *Controller {
	c := &Controller{
		state:  NewState(nodes),
		prober: prober,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Location() *time.Location {
	return c.loc
}

func (c *Controller) Start() (models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := Start(c.state, c.now().UnixMilli(), c.newID())
	if err != nil {
		return models.Session{}, err
	}
	c.state = next
	return Freeze(*next.Session), nil
}

// Tick runs one sampling round and returns the appended records.
func (c *Controller) Tick() ([]models.PingRecord, View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick()
}

// TickSession is Tick for a round scheduled on behalf of session id. It
// returns ErrStaleTick when a different session is running by the time the
// round gets the lock.
func (c *Controller) TickSession(id string) ([]models.PingRecord, View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Phase == PhaseMonitoring && c.state.Session != nil && c.state.Session.ID != id {
		return nil, View{}, ErrStaleTick
	}
	return c.tick()
}

func (c *Controller) tick() ([]models.PingRecord, View, error) {
	next, batch, err := Tick(c.state, c.now().UnixMilli(), c.prober, c.loc)
	if err != nil {
		return nil, View{}, err
	}
	c.state = next
	return batch, next.View, nil
}

func (c *Controller) Stop() (models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, sess, err := Stop(c.state, c.now().UnixMilli())
	if err != nil {
		return models.Session{}, err
	}
	c.state = next
	return sess, nil
}

func (c *Controller) CloseSummary() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := CloseSummary(c.state)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) SetNodes(nodes []models.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := SetNodes(c.state, nodes)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) AddNode(n models.Node) (models.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, added, err := AddNode(c.state, n)
	if err != nil {
		return models.Node{}, err
	}
	c.state = next
	return added, nil
}

func (c *Controller) Nodes() []models.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Node(nil), c.state.Nodes...)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

// Session returns a copy of the live or most recently stopped session.
func (c *Controller) Session() (models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Session == nil {
		return models.Session{}, ErrNoSession
	}
	return Freeze(*c.state.Session), nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	snap := Snapshot{
		Phase:          s.Phase,
		SummaryVisible: s.SummaryVisible,
		Nodes:          append([]models.Node(nil), s.Nodes...),
		View: View{
			Live:      s.View.Live,
			Session:   s.View.Session,
			Chart:     append(make([]models.ChartPoint, 0, len(s.View.Chart)), s.View.Chart...),
			Anomalies: append(make([]models.PingRecord, 0, len(s.View.Anomalies)), s.View.Anomalies...),
		},
	}
	nodes := s.Nodes
	var records []models.PingRecord
	if s.Session != nil {
		snap.SessionID = s.Session.ID
		snap.StartTime = s.Session.StartTime
		snap.EndTime = s.Session.EndTime
		snap.RecordCount = len(s.Session.Records)
		nodes = s.Session.Nodes
		records = s.Session.Records
	}
	snap.Topology = analytics.Topology(records, nodes)
	return snap
}
