package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/split"
	"github.com/splitkit/splitkit/internal/track"
)

// Config is the server's environment configuration.
type Config struct {
	Port      int    `env:"SPLITKIT_PORT" envDefault:"8080"`
	DBPath    string `env:"SPLITKIT_DB_PATH" envDefault:"./splitkit.db"`
	TokenFile string `env:"SPLITKIT_TOKEN_FILE"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

type Server struct {
	docs      *docstore.SQLiteStore
	store     *experiment.Store
	assigner  *split.Assigner
	tracker   *track.Tracker
	log       *zap.Logger
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time
}

func New(docs *docstore.SQLiteStore, log *zap.Logger, port int, tokenFile string) *Server {
	store := experiment.NewStore(docs)

	srv := &Server{
		docs:      docs,
		store:     store,
		assigner:  split.NewAssigner(store, log),
		tracker:   track.New(store, log),
		log:       log,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/api/experiments", s.handleExperiments)
	s.router.HandleFunc("/api/experiments/track", s.handleTrack)
	s.router.HandleFunc("/api/experiments/", s.handleExperiment)
	s.router.HandleFunc("/splitkit.js", s.handleClientJS)
	s.router.HandleFunc("/dashboard", s.handleDashboard)
	s.router.HandleFunc("/dashboard/", s.handleDashboard)
}

func (s *Server) Start() error {
	return s.StartWithOptions(true)
}

// StartQuiet starts the server without printing startup messages
func (s *Server) StartQuiet() error {
	return s.StartWithOptions(false)
}

func (s *Server) StartWithOptions(printMessages bool) error {
	// Write token to file so CLI commands can authenticate
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.log.Warn("failed to write token file", zap.Error(err))
		}
	}

	addr := fmt.Sprintf(":%d", s.port)

	if printMessages {
		fmt.Println()
		fmt.Printf("splitkit running on http://localhost:%d\n", s.port)
		fmt.Printf("Dashboard: http://localhost:%d/dashboard?token=%s\n", s.port, s.token)
		fmt.Printf("Admin token: %s\n", s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Store() *experiment.Store {
	return s.store
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.requestLogger(s.router)
}

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func generateToken() string {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4"
	}
	return hex.EncodeToString(bytes)
}
