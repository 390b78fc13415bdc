// Package session owns the monitoring lifecycle: the Idle/Monitoring state
// machine, the append-only record store and the per-tick recomputation of
// live and session views.
package session

import (
	"time"

	"github.com/pkg/errors"

	"netpulse/internal/analytics"
	"netpulse/internal/config"
	"netpulse/internal/models"
	"netpulse/internal/probe"
)

var (
	ErrNotIdle       = errors.New("monitoring is running")
	ErrNotMonitoring = errors.New("monitoring is not running")
	ErrNoSession     = errors.New("no session available")
	ErrStaleTick     = errors.New("tick belongs to a previous session")
)

type Phase string

const (
	PhaseIdle       Phase = "Idle"
	PhaseMonitoring Phase = "Monitoring"
)

// Prober produces one measurement for an address.
type Prober interface {
	Simulate(address string) probe.Result
}

// View holds everything derived from the record store on a tick.
type View struct {
	Live      models.AggregatedStats `json:"live"`
	Session   models.AggregatedStats `json:"session"`
	Chart     []models.ChartPoint    `json:"chart"`
	Anomalies []models.PingRecord    `json:"anomalies"`
}

func emptyView() View {
	return View{
		Live:      analytics.Baseline(),
		Session:   analytics.Baseline(),
		Chart:     []models.ChartPoint{},
		Anomalies: []models.PingRecord{},
	}
}

// State is the full engine state. Transition functions take a State and
// return the next one; a State value is never mutated in place except for
// appends to Session.Records, which only Tick performs.
type State struct {
	Phase          Phase
	Nodes          []models.Node
	Session        *models.Session
	SummaryVisible bool
	View           View
}

func NewState(nodes []models.Node) State {
	return State{
		Phase: PhaseIdle,
		Nodes: append([]models.Node(nil), nodes...),
		View:  emptyView(),
	}
}

// SetNodes replaces the node configuration. Idle only.
func SetNodes(s State, nodes []models.Node) (State, error) {
	if s.Phase != PhaseIdle {
		return s, ErrNotIdle
	}
	if err := config.ValidateNodes(nodes); err != nil {
		return s, err
	}
	s.Nodes = append([]models.Node(nil), nodes...)
	return s, nil
}

// AddNode appends a node, assigning the next numeric id when it has none.
func AddNode(s State, n models.Node) (State, models.Node, error) {
	if s.Phase != PhaseIdle {
		return s, n, ErrNotIdle
	}
	if n.ID == "" {
		n.ID = config.NextNodeID(s.Nodes)
	}
	if n.Category == "" {
		n.Category = models.CategoryWAN
	}
	if n.Name == "" {
		n.Name = "New Node"
	}
	nodes := append(append([]models.Node(nil), s.Nodes...), n)
	next, err := SetNodes(s, nodes)
	return next, n, err
}

// Start opens a new session at now, discarding any previous one.
func Start(s State, now int64, id string) (State, error) {
	if s.Phase != PhaseIdle {
		return s, ErrNotIdle
	}
	s.Phase = PhaseMonitoring
	s.SummaryVisible = false
	s.Session = &models.Session{
		ID:        id,
		StartTime: now,
		Nodes:     append([]models.Node(nil), s.Nodes...),
		Records:   []models.PingRecord{},
	}
	s.View = emptyView()
	return s, nil
}

// Tick probes every session node once, appends the results stamped with
// now and recomputes the view.
func Tick(s State, now int64, p Prober, loc *time.Location) (State, []models.PingRecord, error) {
	if s.Phase != PhaseMonitoring || s.Session == nil {
		return s, nil, ErrNotMonitoring
	}

	batch := make([]models.PingRecord, 0, len(s.Session.Nodes))
	for _, n := range s.Session.Nodes {
		r := p.Simulate(n.Address)
		batch = append(batch, models.PingRecord{
			Timestamp:  now,
			NodeID:     n.ID,
			LatencyMs:  r.LatencyMs,
			Status:     r.Status,
			PacketLoss: r.PacketLoss,
		})
	}

	sess := *s.Session
	sess.Records = append(sess.Records, batch...)
	s.Session = &sess
	s.View = Compute(sess.Records, len(sess.Nodes), now, loc)
	return s, batch, nil
}

// Compute derives the live and session views from the full record set.
func Compute(records []models.PingRecord, nodeCount int, now int64, loc *time.Location) View {
	return View{
		Live:      analytics.Aggregate(analytics.LiveWindow(records, now)),
		Session:   analytics.Aggregate(records),
		Chart:     analytics.ChartSeries(records, nodeCount, loc),
		Anomalies: analytics.Anomalies(records, analytics.AnomalyLimit),
	}
}

// Stop closes the running session and shows its summary. The returned
// session is a frozen copy.
func Stop(s State, now int64) (State, models.Session, error) {
	if s.Phase != PhaseMonitoring || s.Session == nil {
		return s, models.Session{}, ErrNotMonitoring
	}
	sess := *s.Session
	sess.EndTime = now
	sess = Freeze(sess)
	s.Session = &sess
	s.Phase = PhaseIdle
	s.SummaryVisible = true
	return s, Freeze(sess), nil
}

// CloseSummary dismisses the report and drops the session.
func CloseSummary(s State) (State, error) {
	if s.Phase != PhaseIdle {
		return s, ErrNotIdle
	}
	s.SummaryVisible = false
	s.Session = nil
	s.View = emptyView()
	return s, nil
}

// Freeze returns a deep copy of sess.
func Freeze(sess models.Session) models.Session {
	sess.Nodes = append(make([]models.Node, 0, len(sess.Nodes)), sess.Nodes...)
	sess.Records = append(make([]models.PingRecord, 0, len(sess.Records)), sess.Records...)
	return sess
}
