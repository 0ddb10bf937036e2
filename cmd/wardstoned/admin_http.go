package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wardstone.gg/internal/keeper"
	"wardstone.gg/internal/migrate"
	"wardstone.gg/internal/persistence/r2s3"
	"wardstone.gg/internal/ward"
)

// adminAPI serves the local ops endpoints. Everything here is read-mostly;
// the two mutating routes (migrate, rebuild) are idempotent.
type adminAPI struct {
	keeper *keeper.Keeper
	mirror *mirrorRuntime
	log    *log.Logger
}

func (a *adminAPI) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/resolve", a.loopbackOnly(a.handleResolve))
	mux.HandleFunc("/v1/alias-exists", a.loopbackOnly(a.handleAliasExists))
	mux.HandleFunc("/v1/limits", a.loopbackOnly(a.handleLimits))
	mux.HandleFunc("/v1/migration", a.loopbackOnly(a.handleMigration))
	mux.HandleFunc("/v1/rebuild", a.loopbackOnly(a.handleRebuild))
	mux.HandleFunc("/v1/stats", a.loopbackOnly(a.handleStats))
	return mux
}

func (a *adminAPI) loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

// wardView is the JSON shape of a ward on the admin surface. Principals are
// rendered in storage form: UUID text, or the legacy name for entries the
// migration has not converted.
type wardView struct {
	ID        string   `json:"id"`
	World     string   `json:"world"`
	Alias     string   `json:"alias,omitempty"`
	BlockType string   `json:"block_type"`
	Anchor    [3]int   `json:"anchor"`
	Priority  int      `json:"priority,omitempty"`
	CreatedAt string   `json:"created_at"`
	Owners    []string `json:"owners,omitempty"`
	Members   []string `json:"members,omitempty"`
}

func viewOf(w ward.Ward) wardView {
	v := wardView{
		ID:        w.ID,
		World:     w.World,
		Alias:     w.Alias,
		BlockType: w.BlockType,
		Anchor:    [3]int{w.Anchor.X, w.Anchor.Y, w.Anchor.Z},
		Priority:  w.Priority,
		CreatedAt: w.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, r := range w.Owners {
		v.Owners = append(v.Owners, r.String())
	}
	for _, r := range w.Members {
		v.Members = append(v.Members, r.String())
	}
	return v
}

func (a *adminAPI) handleResolve(rw http.ResponseWriter, r *http.Request) {
	world := strings.TrimSpace(r.URL.Query().Get("world"))
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if world == "" || token == "" {
		writeError(rw, http.StatusBadRequest, "missing world or token")
		return
	}
	wards, err := a.keeper.Resolve(r.Context(), world, token)
	if err != nil {
		if errors.Is(err, ward.ErrWorldUnknown) {
			writeError(rw, http.StatusNotFound, err.Error())
			return
		}
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]wardView, 0, len(wards))
	for _, w := range wards {
		views = append(views, viewOf(w))
	}
	writeJSON(rw, struct {
		World string     `json:"world"`
		Token string     `json:"token"`
		Wards []wardView `json:"wards"`
	}{World: world, Token: token, Wards: views})
}

func (a *adminAPI) handleAliasExists(rw http.ResponseWriter, r *http.Request) {
	alias := strings.TrimSpace(r.URL.Query().Get("alias"))
	if alias == "" {
		writeError(rw, http.StatusBadRequest, "missing alias")
		return
	}
	exists, err := a.keeper.AliasExistsAnywhere(r.Context(), alias)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, struct {
		Alias  string `json:"alias"`
		Exists bool   `json:"exists"`
	}{Alias: alias, Exists: exists})
}

func (a *adminAPI) handleLimits(rw http.ResponseWriter, r *http.Request) {
	player, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("player")))
	if err != nil {
		writeError(rw, http.StatusBadRequest, "bad player uuid")
		return
	}
	writeJSON(rw, struct {
		Player string        `json:"player"`
		Limits keeper.Limits `json:"limits"`
	}{Player: player.String(), Limits: a.keeper.LimitsFor(player)})
}

func (a *adminAPI) handleMigration(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(rw, a.keeper.MigrationStatus())
	case http.MethodPost:
		force := r.URL.Query().Get("force") == "1"
		ctx2, cancel2 := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel2()
		rep, ran, err := a.keeper.RunMigrationIfPending(ctx2, force)
		if err != nil {
			writeError(rw, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(rw, struct {
			Ran    bool           `json:"ran"`
			Report migrate.Report `json:"report"`
		}{Ran: ran, Report: rep})
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *adminAPI) handleRebuild(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	world := strings.TrimSpace(r.URL.Query().Get("world"))
	if err := a.keeper.RebuildCaches(r.Context(), world); err != nil {
		writeError(rw, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(rw, a.keeper.Stats())
}

func (a *adminAPI) handleStats(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, struct {
		keeper.Stats
		Mirror *r2s3.MirrorStats `json:"mirror,omitempty"`
	}{Stats: a.keeper.Stats(), Mirror: a.mirror.Stats()})
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, code int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(map[string]string{"error": msg})
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

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
