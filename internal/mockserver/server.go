// Package mockserver is an in-memory stand-in for the Shennong backend and
// its upload bucket. Tests run the client packages and the CLI against it.
package mockserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/me/shennong/pkg/model"
)

// Bucket is the bucket name served under path-style addressing.
const Bucket = "shennong-test"

// VerificationCode is the code every registration is confirmed with.
const VerificationCode = "424242"

type account struct {
	user     model.User
	password string
	verified bool
}

// Server is the mock backend.
type Server struct {
	router chi.Router
	logger *slog.Logger
	schema []byte

	// CredsStatus, when non-zero, is returned by /api/temp-creds instead of
	// credentials.
	CredsStatus int
	// RejectUpload, when set, makes the bucket answer 403 AccessDenied for
	// matching keys.
	RejectUpload func(key string) bool

	mu        sync.Mutex
	accounts  map[int]*account
	tokens    map[string]int
	jobs      []model.Job
	objects   map[string][]byte
	credCalls int
	nextID    int
}

// New creates a Server publishing schema as the processor schema.
func New(schema []byte, logger *slog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.With("component", "mockserver"),
		schema:   schema,
		accounts: make(map[int]*account),
		tokens:   make(map[string]int),
		objects:  make(map[string][]byte),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/static/processor-schema.json", s.handleSchema)

	r.Route("/api", func(r chi.Router) {
		r.Post("/token", s.handleLogin)
		r.Post("/users", s.handleRegister)
		r.Post("/users/reset-password", s.handleResetPassword)
		r.Post("/users/verification_code", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/refresh", s.handleRefresh)
			r.Get("/temp-creds", s.handleTempCreds)
			r.Post("/shennong-job", s.handleSubmitJob)
			r.Get("/users/current", s.handleCurrentUser)
			r.Patch("/users/{id}", s.handleUpdateUser)
			r.Get("/users/{id}/tasks", s.handleListUserJobs)
			r.Get("/users/{id}/tasks/{tid}", s.handleGetUserJob)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/tasks", s.handleListAllJobs)
				r.Get("/users", s.handleListUsers)
			})
		})
	})

	r.Put("/"+Bucket+"/*", s.handlePutObject)
	r.Delete("/"+Bucket+"/*", s.handleDeleteObject)
}

// AddUser creates a verified account and returns it.
func (s *Server) AddUser(email, password string, admin bool) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.newAccountLocked(email, email, password)
	acct.verified = true
	if admin {
		acct.user.Roles = append(acct.user.Roles, model.Role{ID: 1, Role: model.RoleAdmin})
	}
	return acct.user
}

// IssueToken returns a valid token for userID.
func (s *Server) IssueToken(userID int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(userID)
}

// AddJob stores a job for userID as if it had been submitted earlier.
func (s *Server) AddJob(userID int, cfg model.JobConfig, state model.JobState) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addJobLocked(userID, cfg, state)
}

// Jobs returns every stored job.
func (s *Server) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Job(nil), s.jobs...)
}

// Object returns the bytes stored under key in the bucket.
func (s *Server) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}

// ObjectCount returns the number of objects in the bucket.
func (s *Server) ObjectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// CredentialCalls returns how many times temporary credentials were requested.
func (s *Server) CredentialCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credCalls
}

func (s *Server) newAccountLocked(email, username, password string) *account {
	s.nextID++
	acct := &account{
		user: model.User{
			ID:       s.nextID,
			Created:  time.Now().UTC().Format(time.RFC3339),
			Email:    email,
			Username: username,
			Roles:    []model.Role{},
		},
		password: password,
	}
	s.accounts[acct.user.ID] = acct
	return acct
}

func (s *Server) issueTokenLocked(userID int) string {
	tok := uuid.NewString()
	s.tokens[tok] = userID
	return tok
}

func (s *Server) addJobLocked(userID int, cfg model.JobConfig, state model.JobState) model.Job {
	s.nextID++
	job := model.Job{
		ID:         s.nextID,
		Created:    time.Now().UTC().Format(time.RFC3339),
		TaskmetaID: uuid.NewString(),
		UserID:     userID,
		TaskInfo:   &model.TaskInfo{ID: s.nextID, Status: state},
		CanRetry:   state == model.JobStateFailure || state == model.JobStateSuccess,
		Taskmeta:   &model.Taskmeta{Kwargs: &model.TaskKwargs{Config: cfg}},
	}
	job.TaskInfo.TaskID = job.TaskmetaID
	if acct, ok := s.accounts[userID]; ok {
		u := acct.user
		job.User = &u
	}
	s.jobs = append(s.jobs, job)
	return job
}
