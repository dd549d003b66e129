package mockserver

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/shennong/pkg/model"
)

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(s.schema)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acct := range s.accounts {
		if acct.user.Email == req.Email && acct.password == req.Password && acct.verified {
			respondJSON(w, http.StatusOK, s.tokenPairLocked(id))
			return
		}
	}
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondDetail(w, http.StatusUnauthorized, "Incorrect username or password")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	u := s.currentUser(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, s.tokenPairLocked(u.ID))
}

func (s *Server) tokenPairLocked(userID int) model.Token {
	return model.Token{
		AccessToken:  s.issueTokenLocked(userID),
		RefreshToken: s.issueTokenLocked(userID),
		TokenType:    "bearer",
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg model.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if reg.Email == "" || reg.Password == "" {
		respondDetail(w, http.StatusUnprocessableEntity, []map[string]any{
			{"loc": []string{"body", "email"}, "msg": "field required", "type": "value_error.missing"},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.user.Email == reg.Email {
			respondDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	acct := s.newAccountLocked(reg.Email, reg.Username, reg.Password)
	respondJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"user_email"`
		Code  string `json:"verification_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acct := range s.accounts {
		if acct.user.Email == req.Email && req.Code == VerificationCode {
			acct.verified = true
			respondJSON(w, http.StatusOK, s.tokenPairLocked(id))
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Verification code not found")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	respondJSON(w, http.StatusOK, true)
}

func (s *Server) handleTempCreds(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.credCalls++
	status := s.CredsStatus
	s.mu.Unlock()

	if status != 0 {
		respondDetail(w, status, "Could not fetch credentials")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"Credentials": model.TempCredentials{
			AccessKeyID:     "ASIAMOCKACCESSKEY",
			SecretAccessKey: "mock-secret",
			SessionToken:    "mock-session",
			Expiration:      time.Now().Add(time.Hour).UTC(),
		},
	})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var cfg model.JobConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	violations := map[string]string{}
	if cfg.Channel != 1 && cfg.Channel != 2 {
		violations["channel"] = "Channel should be either 1 or 2"
	}
	if cfg.Email == "" {
		violations["email"] = "email is required"
	}
	if len(cfg.Files) == 0 {
		violations["files"] = "Files[] must contain at least one file"
	}
	if cfg.Res != ".pkl" && cfg.Res != ".csv" {
		violations["res"] = "res must be one of .pkl, .csv"
	}
	if len(cfg.Analyses) == 0 {
		violations["analyses"] = "analyses field is required"
	}
	if len(violations) > 0 {
		respondViolations(w, violations)
		return
	}

	u := s.currentUser(r)
	s.AddJob(u.ID, cfg, model.JobStatePending)
	respondJSON(w, http.StatusCreated, true)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.currentUser(r))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorizedUserID(w, r)
	if !ok {
		return
	}
	var upd model.UserUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, found := s.accounts[id]
	if !found {
		respondDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if upd.Email != nil {
		acct.user.Email = *upd.Email
	}
	if upd.Username != nil {
		acct.user.Username = *upd.Username
	}
	if upd.Password != nil {
		acct.password = *upd.Password
	}
	respondJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleListUserJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorizedUserID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	var jobs []model.Job
	for _, j := range s.jobs {
		if j.UserID == id {
			jobs = append(jobs, listed(j))
		}
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, paginate(jobs, r))
}

func (s *Server) handleGetUserJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorizedUserID(w, r)
	if !ok {
		return
	}
	tid, err := strconv.Atoi(chi.URLParam(r, "tid"))
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "task id must be an integer")
		return
	}
	admin := s.currentUser(r).IsAdmin()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == tid && (admin || j.UserID == id) {
			respondJSON(w, http.StatusOK, j)
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Task not found!")
}

func (s *Server) handleListAllJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := make([]model.Job, len(s.jobs))
	for i, j := range s.jobs {
		jobs[i] = listed(j)
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, paginate(jobs, r))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]model.User, 0, len(s.accounts))
	for _, acct := range s.accounts {
		users = append(users, acct.user)
	}
	s.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	respondJSON(w, http.StatusOK, users)
}

// authorizedUserID returns the {id} path parameter when the caller is that
// user or an admin.
func (s *Server) authorizedUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "user id must be an integer")
		return 0, false
	}
	u := s.currentUser(r)
	if u.ID != id && !u.IsAdmin() {
		respondDetail(w, http.StatusForbidden, "Not allowed")
		return 0, false
	}
	return id, true
}

// listed strips the detail-only fields from a job.
func listed(j model.Job) model.Job {
	j.Taskmeta = nil
	j.CanRetry = false
	return j
}

func paginate(jobs []model.Job, r *http.Request) model.Page[model.Job] {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		opts.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil {
		opts.PerPage = v
	}
	opts.Sort = q.Get("sort")
	opts.Desc = q.Get("desc") == "true"
	opts.Clamp()

	sort.SliceStable(jobs, func(i, k int) bool {
		if opts.Desc {
			return jobs[i].ID > jobs[k].ID
		}
		return jobs[i].ID < jobs[k].ID
	})

	page := model.Page[model.Job]{Data: []model.Job{}, Total: len(jobs), Page: opts.Page, PerPage: opts.PerPage, Sort: opts.Sort, Desc: opts.Desc}
	start := (opts.Page - 1) * opts.PerPage
	if start < len(jobs) {
		end := min(start+opts.PerPage, len(jobs))
		page.Data = jobs[start:end]
	}
	return page
}
