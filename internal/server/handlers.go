package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"netpulse/internal/models"
	"netpulse/internal/report"
	"netpulse/internal/stream"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   s.now().UTC(),
		"version":     version,
		"phase":       s.ctl.Phase(),
		"subscribers": s.hub.Subscribers(),
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) listNodesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Nodes())
}

func (s *Server) replaceNodesHandler(w http.ResponseWriter, r *http.Request) {
	var nodes []models.Node
	if err := json.NewDecoder(r.Body).Decode(&nodes); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctl.SetNodes(nodes); err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("nodes replaced", "count", len(nodes))
	writeJSON(w, http.StatusOK, s.ctl.Nodes())
}

func (s *Server) addNodeHandler(w http.ResponseWriter, r *http.Request) {
	var node models.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := s.ctl.AddNode(node)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("node added", "id", added.ID, "address", added.Address)
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.runner.Start()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        sess.ID,
		"startTime": sess.StartTime,
		"nodes":     sess.Nodes,
	})
}

func (s *Server) stopHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.runner.Stop()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(sess, s.now(), s.ctl.Location()))
}

func (s *Server) closeHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.CloseSummary(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) currentReportHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctl.Session()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(sess, s.now(), s.ctl.Location()))
}

func (s *Server) currentExportHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctl.Session()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, r, sess)
}

func (s *Server) liveStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Live)
}

func (s *Server) sessionStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Session)
}

func (s *Server) chartHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Chart)
}

func (s *Server) anomaliesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Anomalies)
}

func (s *Server) topologyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Snapshot().Topology)
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	ids, err := s.archive.RecentSessionIDs(r.Context(), int64(limit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": ids})
}

func (s *Server) archivedReportHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.archive.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(sess, s.now(), s.ctl.Location()))
}

func (s *Server) archivedExportHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.archive.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, r, sess)
}

func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, sess models.Session) {
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, sess, s.ctl.Location()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// wsHandler subscribes the connection to tick and clock frames. The current
// snapshot is sent first so a client never waits a full tick for state.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	client := stream.NewClient(conn, s.log)

	if payload, err := json.Marshal(stream.Message{Type: FrameTick, Data: s.ctl.Snapshot()}); err == nil {
		if err := client.Send(payload); err != nil {
			client.Close()
			return
		}
	}

	s.hub.Register(stream.TopicClock, client)
	s.hub.Register(stream.TopicLive, client)
	go func() {
		defer func() {
			s.hub.Unregister(stream.TopicLive, client)
			s.hub.Unregister(stream.TopicClock, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
