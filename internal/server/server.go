package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/config"
	"zoolanding/quickstats/internal/stats"
	"zoolanding/quickstats/internal/store"
)

// Subscription represents a client subscription to stats document changes
type Subscription struct {
	ID           string
	W            http.ResponseWriter
	F            http.Flusher
	LastDocument []byte // last document state, used to calculate patches
	LastETag     string // version token of the last document
}

// StatsServer exposes the stats update API over HTTP: POST /stats applies an
// operation batch, GET /stats/{appName} reads a document or, with a
// Subscribe header, streams its changes.
type StatsServer struct {
	config        *config.Config
	service       *stats.Service
	store         store.Store
	subscriptions map[string]map[string]Subscription // appName -> subID -> sub
	mu            sync.RWMutex
}

// NewStatsServer wires the update service and store into an HTTP server.
// Backends that watch for out-of-band changes (the local store) feed the
// subscription hub through their change channel.
func NewStatsServer(cfg *config.Config, service *stats.Service, st store.Store) *StatsServer {
	s := &StatsServer{
		config:        cfg,
		service:       service,
		store:         st,
		subscriptions: make(map[string]map[string]Subscription),
	}

	if w, ok := st.(store.Watcher); ok {
		go s.watchStore(w)
	}

	return s
}

// watchStore forwards document changes made outside this process to
// subscribers.
func (s *StatsServer) watchStore(w store.Watcher) {
	for change := range w.Changes() {
		log.Debug().Str("appName", change.AppName).Msg("document changed in store")
		s.notifySubscribers(change.AppName, change.Data)
	}
}

// SetupRoutes configures the HTTP routes for the server
func (s *StatsServer) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/stats", s.handleUpdate).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/stats/{appName}", s.handleRead).Methods(http.MethodGet, http.MethodOptions)
	return router
}
