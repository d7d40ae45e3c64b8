package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"realmclock.ai/internal/persistence/r2s3"
	"realmclock.ai/internal/protocol"
	"realmclock.ai/internal/sim/lifecycle"
	"realmclock.ai/internal/sim/multiworld"
	"realmclock.ai/internal/sim/worldstate"
)

type recentEvents interface {
	RecentEvents(ctx context.Context, worldID string, limit int) ([]protocol.Event, error)
}

type api struct {
	rt     *multiworld.Runtime
	events recentEvents
	// observers is the live observer count, nil when the ws stream is not mounted.
	observers func() int
	now       func() time.Time
	log       *log.Logger
	mirror    *r2s3.Mirror
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", a.handleMetrics)
	mux.HandleFunc("GET /v1/worlds", a.handleWorlds)
	mux.HandleFunc("GET /v1/worlds/{id}", a.handleWorld)
	mux.HandleFunc("GET /v1/worlds/{id}/archives", a.handleArchives)
	mux.HandleFunc("GET /v1/worlds/{id}/nodes", a.handleNodes)
	mux.HandleFunc("GET /v1/worlds/{id}/events", a.handleEvents)
	mux.HandleFunc("POST /v1/worlds/{id}/advance", a.loopbackOnly(a.handleAdvanceWorld))
	mux.HandleFunc("POST /v1/worlds/{id}/joinable", a.loopbackOnly(a.handleJoinable))
	mux.HandleFunc("POST /v1/marches", a.loopbackOnly(a.handleStartMarch))
	mux.HandleFunc("POST /v1/marches/{id}/advance", a.loopbackOnly(a.handleAdvanceMarch))
}

type worldStatus struct {
	WorldID        string                    `json:"world_id"`
	LifecycleState worldstate.LifecycleState `json:"lifecycle_state"`
	SeasonNumber   int                       `json:"season_number"`
	WorldRevision  int                       `json:"world_revision"`
	Schedule       lifecycle.Schedule        `json:"schedule"`
	ActiveNodes    int                       `json:"active_nodes"`
	DepletedNodes  int                       `json:"depleted_nodes"`
}

func (a *api) status(ctx context.Context) ([]worldStatus, error) {
	ids := a.rt.Config().WorldIDs()
	out := make([]worldStatus, 0, len(ids))
	for _, id := range ids {
		snap, err := a.rt.Snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes, err := a.rt.ListNodes(ctx, id)
		if err != nil {
			return nil, err
		}
		ws := worldStatus{
			WorldID:        id,
			LifecycleState: snap.State.LifecycleState,
			SeasonNumber:   snap.State.SeasonNumber,
			WorldRevision:  snap.State.WorldRevision,
			Schedule:       snap.Schedule,
		}
		for _, n := range nodes {
			if n.NodeState == worldstate.NodeDepleted {
				ws.DepletedNodes++
			} else {
				ws.ActiveNodes++
			}
		}
		out = append(out, ws)
	}
	return out, nil
}

func (a *api) handleWorlds(rw http.ResponseWriter, r *http.Request) {
	st, err := a.status(r.Context())
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, st)
}

func (a *api) handleWorld(rw http.ResponseWriter, r *http.Request) {
	resp, err := a.rt.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *api) handleArchives(rw http.ResponseWriter, r *http.Request) {
	list, err := a.rt.ListArchives(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, list)
}

func (a *api) handleNodes(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := a.rt.Snapshot(r.Context(), id); err != nil {
		a.writeError(rw, err)
		return
	}
	nodes, err := a.rt.ListNodes(r.Context(), id)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, nodes)
}

func (a *api) handleEvents(rw http.ResponseWriter, r *http.Request) {
	if a.events == nil {
		http.Error(rw, "event index requires the sqlite store", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	evs, err := a.events.RecentEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, evs)
}

type advanceRequest struct {
	ObservedAt *time.Time `json:"observed_at,omitempty"`
}

// observedAt falls back to the server clock when the body omits observed_at.
func (a *api) observedAt(req advanceRequest) time.Time {
	if req.ObservedAt != nil && !req.ObservedAt.IsZero() {
		return req.ObservedAt.UTC()
	}
	return a.now().UTC()
}

func (a *api) handleAdvanceWorld(rw http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	resp, err := a.rt.AdvanceWorld(r.Context(), r.PathValue("id"), a.observedAt(req))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

type joinableRequest struct {
	advanceRequest
	worldstate.JoinableWorldState
}

func (a *api) handleJoinable(rw http.ResponseWriter, r *http.Request) {
	var req joinableRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	resp, err := a.rt.TrackJoinable(r.Context(), r.PathValue("id"), a.observedAt(req.advanceRequest), req.JoinableWorldState)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *api) handleStartMarch(rw http.ResponseWriter, r *http.Request) {
	var req multiworld.StartMarchRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if strings.TrimSpace(req.MarchID) == "" || strings.TrimSpace(req.NodeID) == "" || strings.TrimSpace(req.WorldID) == "" {
		http.Error(rw, "world_id, march_id and node_id are required", http.StatusBadRequest)
		return
	}
	if req.DepartedAt.IsZero() {
		req.DepartedAt = a.now().UTC()
	}
	resp, err := a.rt.StartMarch(r.Context(), req)
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusCreated, resp)
}

func (a *api) handleAdvanceMarch(rw http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	resp, err := a.rt.AdvanceMarch(r.Context(), r.PathValue("id"), a.observedAt(req))
	if err != nil {
		a.writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *api) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	st, err := a.status(r.Context())
	if err != nil {
		a.writeError(rw, err)
		return
	}
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP realmclock_world_season Current season number.\n")
	fmt.Fprintf(rw, "# TYPE realmclock_world_season gauge\n")
	for _, w := range st {
		fmt.Fprintf(rw, "realmclock_world_season{world=%q} %d\n", w.WorldID, w.SeasonNumber)
	}
	fmt.Fprintf(rw, "# HELP realmclock_world_revision Current world revision.\n")
	fmt.Fprintf(rw, "# TYPE realmclock_world_revision gauge\n")
	for _, w := range st {
		fmt.Fprintf(rw, "realmclock_world_revision{world=%q} %d\n", w.WorldID, w.WorldRevision)
	}
	fmt.Fprintf(rw, "# HELP realmclock_world_state Lifecycle state (1 for the current state).\n")
	fmt.Fprintf(rw, "# TYPE realmclock_world_state gauge\n")
	for _, w := range st {
		for _, s := range []worldstate.LifecycleState{worldstate.LifecycleOpen, worldstate.LifecycleLocked, worldstate.LifecycleArchived} {
			v := 0
			if w.LifecycleState == s {
				v = 1
			}
			fmt.Fprintf(rw, "realmclock_world_state{world=%q,state=%q} %d\n", w.WorldID, s, v)
		}
	}
	fmt.Fprintf(rw, "# HELP realmclock_world_nodes Neutral nodes by state.\n")
	fmt.Fprintf(rw, "# TYPE realmclock_world_nodes gauge\n")
	for _, w := range st {
		fmt.Fprintf(rw, "realmclock_world_nodes{world=%q,state=%q} %d\n", w.WorldID, worldstate.NodeActive, w.ActiveNodes)
		fmt.Fprintf(rw, "realmclock_world_nodes{world=%q,state=%q} %d\n", w.WorldID, worldstate.NodeDepleted, w.DepletedNodes)
	}
	if a.observers != nil {
		fmt.Fprintf(rw, "# HELP realmclock_observers Connected event stream observers.\n")
		fmt.Fprintf(rw, "# TYPE realmclock_observers gauge\n")
		fmt.Fprintf(rw, "realmclock_observers %d\n", a.observers())
	}
	writeMirrorMetrics(rw, a.mirror)
}

func (a *api) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (a *api) writeError(rw http.ResponseWriter, err error) {
	body := errorBody{Code: protocol.CodeOf(err), Message: err.Error()}
	var pe *protocol.Error
	if errors.As(err, &pe) {
		body.Message = pe.Message
		body.Metadata = pe.Metadata
	}
	status := statusForCode(body.Code)
	if status >= 500 && a.log != nil {
		a.log.Printf("http error code=%s: %v", body.Code, err)
	}
	writeJSON(rw, status, body)
}

func statusForCode(code string) int {
	switch code {
	case protocol.ErrWorldNotFound, protocol.ErrNodeNotFound, protocol.ErrMarchNotFound:
		return http.StatusNotFound
	case protocol.ErrMarchConflict, protocol.ErrNodeDepleted, protocol.ErrWorldNotJoinable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(rw http.ResponseWriter, r *http.Request, dst any) bool {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(rw, "read body", http.StatusBadRequest)
		return false
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return true
	}
	if err := json.Unmarshal(b, dst); err != nil {
		http.Error(rw, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
