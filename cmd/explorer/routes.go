package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"stacks-explorer-api/internal/explorer"
	"stacks-explorer-api/internal/observability"
	"stacks-explorer-api/internal/search"
	"stacks-explorer-api/internal/storage"
)

// api serves the explorer entities as JSON.
type api struct {
	x       *explorer.Explorer
	search  *search.Resolver
	tip     func() int64 // nil when no tip watcher runs
	logger  *log.Logger
	started time.Time
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", a.handleStatus)

	mux.HandleFunc("GET /api/accounts/global", a.respond(func(r *http.Request) (any, error) {
		return a.x.GenesisTotals(r.Context())
	}))
	mux.HandleFunc("GET /api/accounts/{address}", a.respond(func(r *http.Request) (any, error) {
		schedule, ok := a.x.GenesisAccount(r.PathValue("address"))
		if !ok {
			return nil, storage.ErrNotFound
		}
		return schedule, nil
	}))
	mux.HandleFunc("GET /api/transactions/{tx}", a.respond(func(r *http.Request) (any, error) {
		return a.x.Transaction(r.Context(), r.PathValue("tx"))
	}))
	mux.HandleFunc("GET /api/addresses/{address}", a.respond(func(r *http.Request) (any, error) {
		return a.x.BTCAddress(r.Context(), r.PathValue("address"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/stacks/addresses/{address}", a.respond(func(r *http.Request) (any, error) {
		return a.x.StacksAddress(r.Context(), r.PathValue("address"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/blocks", a.respond(func(r *http.Request) (any, error) {
		return a.x.Blocks(r.Context(), r.URL.Query().Get("date"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/blocks/{id}", a.respond(func(r *http.Request) (any, error) {
		return a.x.Block(r.Context(), r.PathValue("id"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/names", a.respond(func(r *http.Request) (any, error) {
		return a.x.Names(r.Context(), pageParam(r))
	}))
	mux.HandleFunc("GET /api/names/{name}", a.respond(func(r *http.Request) (any, error) {
		return a.x.Name(r.Context(), r.PathValue("name"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/namespaces", a.respond(func(r *http.Request) (any, error) {
		return a.x.Namespaces(r.Context())
	}))
	mux.HandleFunc("GET /api/namespaces/{namespace}", a.respond(func(r *http.Request) (any, error) {
		return a.x.NamespaceNames(r.Context(), r.PathValue("namespace"), pageParam(r))
	}))
	mux.HandleFunc("GET /api/name-counts", a.respond(func(r *http.Request) (any, error) {
		return a.x.NameCounts(r.Context())
	}))
	mux.HandleFunc("GET /api/total-supply", a.respond(func(r *http.Request) (any, error) {
		return a.x.TotalSupply(r.Context())
	}))
	mux.HandleFunc("GET /api/top-balances", a.respond(func(r *http.Request) (any, error) {
		count, err := strconv.Atoi(r.URL.Query().Get("count"))
		if err != nil {
			count = 100
		}
		return a.x.TopBalances(r.Context(), count)
	}))
	mux.HandleFunc("GET /api/home", a.respond(func(r *http.Request) (any, error) {
		return a.x.HomeInfo(r.Context())
	}))
	mux.HandleFunc("GET /api/search/{query}", a.respond(func(r *http.Request) (any, error) {
		return a.search.Search(r.Context(), r.PathValue("query")), nil
	}))

	return mux
}

// respond writes the value of fn as JSON, mapping failures to status codes.
func (a *api) respond(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A computation outlives its first requester; other callers may share it.
		r = r.WithContext(context.WithoutCancel(r.Context()))

		value, err := fn(r)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				a.logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, value)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, explorer.ErrUpstream), errors.Is(err, explorer.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pageParam returns the page query parameter. Missing, malformed and negative pages are 0.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status       string    `json:"status"`
	Uptime       string    `json:"uptime"`
	Started      time.Time `json:"started"`
	CacheEntries int       `json:"cache_entries"`
	TipHeight    int64     `json:"tip_height,omitempty"`
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:       "running",
		Uptime:       time.Since(a.started).Round(time.Second).String(),
		Started:      a.started,
		CacheEntries: a.x.Engine().Len(),
	}
	if a.tip != nil {
		resp.TipHeight = a.tip()
	}
	writeJSON(w, http.StatusOK, resp)
}
