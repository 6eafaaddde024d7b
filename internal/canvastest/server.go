// Package canvastest provides an in-process fake Canvas instance for
// tests: fixture data, cost-accounting headers on every response, and
// scriptable failures for exercising retry, throttle, and token-refresh
// paths.
package canvastest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// throttleBody is the body Canvas serves with rate-limit 403s.
const throttleBody = "403 Forbidden (Rate Limit Exceeded)\n"

// Account mirrors the fields of a Canvas account this fake serves.
type Account struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	WorkflowState string `json:"workflow_state"`
}

// Term mirrors a Canvas enrollment term.
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Course mirrors a Canvas course.
type Course struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AccountID     int64  `json:"account_id"`
	CourseCode    string `json:"course_code"`
	WorkflowState string `json:"workflow_state"`
}

// User mirrors a Canvas user.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	LoginID   string `json:"login_id,omitempty"`
}

// Assignment mirrors a Canvas assignment.
type Assignment struct {
	ID             int64   `json:"id"`
	CourseID       int64   `json:"course_id"`
	Name           string  `json:"name"`
	PointsPossible float64 `json:"points_possible"`
	Published      bool    `json:"published"`
}

// scripted is one canned response consumed before normal handling.
type scripted struct {
	status   int
	body     string
	throttle bool
}

// Server is a fake Canvas instance backed by httptest.
type Server struct {
	httpSrv *httptest.Server

	requests atomic.Int64

	mu          sync.Mutex
	script      []scripted
	tokens      map[string]bool
	requireAuth bool
	oauthID     string
	oauthSecret string
	refreshTok  string
	issued      int
	limiter     *rate.Limiter

	accounts    map[int64]*Account
	terms       map[int64][]Term
	courses     map[int64]*Course
	users       map[int64]*User
	assignments map[int64]map[int64]*Assignment
	nextID      int64
}

// Option configures the fake server.
type Option func(*Server)

// WithAPIToken marks token as valid and turns authentication on.
func WithAPIToken(token string) Option {
	return func(s *Server) {
		s.tokens[token] = true
		s.requireAuth = true
	}
}

// WithOAuthApp registers a developer key whose refresh grant the token
// endpoint accepts, and turns authentication on.
func WithOAuthApp(clientID, clientSecret, refreshToken string) Option {
	return func(s *Server) {
		s.oauthID = clientID
		s.oauthSecret = clientSecret
		s.refreshTok = refreshToken
		s.requireAuth = true
	}
}

// WithRateLimit replaces the default request budget: leak units per
// second regained, burst units of headroom.
func WithRateLimit(leak float64, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(leak), burst)
	}
}

// New starts a fake Canvas instance. Callers own Close.
func New(opts ...Option) *Server {
	s := &Server{
		tokens:      make(map[string]bool),
		limiter:     rate.NewLimiter(rate.Limit(50), 3000),
		accounts:    make(map[int64]*Account),
		terms:       make(map[int64][]Term),
		courses:     make(map[int64]*Course),
		users:       make(map[int64]*User),
		assignments: make(map[int64]map[int64]*Assignment),
		nextID:      1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.seed()

	r := chi.NewRouter()
	r.Post("/login/oauth2/token", s.issueToken)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.apiMiddleware)
		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/{accountID}", s.getAccount)
		r.Get("/accounts/{accountID}/terms", s.listTerms)
		r.Get("/accounts/{accountID}/courses", s.listAccountCourses)
		r.Post("/accounts/{accountID}/courses", s.createCourse)
		r.Get("/courses", s.listCourses)
		r.Get("/courses/{courseID}", s.getCourse)
		r.Put("/courses/{courseID}", s.updateCourse)
		r.Delete("/courses/{courseID}", s.deleteCourse)
		r.Get("/courses/{courseID}/assignments", s.listAssignments)
		r.Get("/courses/{courseID}/assignments/{assignmentID}", s.getAssignment)
		r.Put("/courses/{courseID}/assignments/{assignmentID}/submissions/{userID}", s.gradeSubmission)
		r.Get("/users/{userID}", s.getUser)
		r.Get("/users/{userID}/profile", s.getProfile)
	})

	s.httpSrv = httptest.NewServer(r)
	return s
}

func (s *Server) seed() {
	s.accounts[1] = &Account{ID: 1, Name: "Rootland University", WorkflowState: "active"}
	s.terms[1] = []Term{{ID: 1, Name: "Fall 2025"}, {ID: 2, Name: "Spring 2026"}}
	s.courses[101] = &Course{ID: 101, Name: "Biology", AccountID: 1, CourseCode: "BIO-101", WorkflowState: "available"}
	s.courses[102] = &Course{ID: 102, Name: "Organic Chemistry", AccountID: 1, CourseCode: "CHEM-220", WorkflowState: "available"}
	s.users[7] = &User{ID: 7, Name: "Ada School", ShortName: "Ada", LoginID: "ada@rootland.edu"}
	s.assignments[101] = map[int64]*Assignment{
		201: {ID: 201, CourseID: 101, Name: "Lab Report 1", PointsPossible: 10, Published: true},
		202: {ID: 202, CourseID: 101, Name: "Midterm", PointsPossible: 100, Published: true},
	}
}

// URL returns the instance base URL.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// Close shuts the instance down.
func (s *Server) Close() {
	s.httpSrv.Close()
}

// Requests returns how many API requests reached the instance, scripted
// responses included.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// FailNext queues n canned status responses ahead of normal handling.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.script = append(s.script, scripted{
			status: status,
			body:   fmt.Sprintf(`{"errors":[{"message":"scripted failure"}],"error_report_id":%d}`, 9000+i),
		})
	}
}

// ThrottleNext queues n Canvas-style rate-limit rejections.
func (s *Server) ThrottleNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.script = append(s.script, scripted{status: http.StatusForbidden, body: throttleBody, throttle: true})
	}
}

// RevokeTokens invalidates every issued token, forcing a refresh.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// IssuedTokens returns how many tokens the OAuth endpoint has granted.
func (s *Server) IssuedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *Server) popScript() (scripted, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return scripted{}, false
	}
	step := s.script[0]
	s.script = s.script[1:]
	return step, true
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requireAuth {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	return s.tokens[auth[len(prefix):]]
}

// apiMiddleware applies, in order, scripted responses, authentication,
// and rate-limit accounting with the cost headers Canvas sends.
func (s *Server) apiMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)

		if step, ok := s.popScript(); ok {
			if step.throttle {
				w.Header().Set("X-Rate-Limit-Remaining", "0.0")
			}
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(step.status)
			fmt.Fprint(w, step.body)
			return
		}

		if !s.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"errors": []map[string]string{{"message": "Invalid access token."}},
			})
			return
		}

		s.mu.Lock()
		allowed := s.limiter.Allow()
		remaining := s.limiter.Tokens()
		s.mu.Unlock()
		if !allowed {
			w.Header().Set("X-Rate-Limit-Remaining", "0.0")
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, throttleBody)
			return
		}
		w.Header().Set("X-Rate-Limit-Remaining", strconv.FormatFloat(remaining, 'f', 1, 64))
		w.Header().Set("X-Request-Cost", "1.0")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.PostFormValue("grant_type") != "refresh_token" ||
		r.PostFormValue("client_id") != s.oauthID ||
		r.PostFormValue("client_secret") != s.oauthSecret ||
		r.PostFormValue("refresh_token") != s.refreshTok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	s.issued++
	token := fmt.Sprintf("issued-%d", s.issued)
	s.tokens[token] = true
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *Server) listAccounts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	account, ok := s.accounts[urlID(r, "accountID")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) listTerms(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	terms := s.terms[urlID(r, "accountID")]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"enrollment_terms": terms})
}

func (s *Server) listCourses(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]*Course, 0, len(s.courses))
	for _, c := range s.courses {
		out = append(out, c)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listAccountCourses(w http.ResponseWriter, r *http.Request) {
	accountID := urlID(r, "accountID")
	s.mu.Lock()
	out := make([]*Course, 0, len(s.courses))
	for _, c := range s.courses {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	course, ok := s.courses[urlID(r, "courseID")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

type courseUpdate struct {
	Course struct {
		Name       string `json:"name"`
		CourseCode string `json:"course_code"`
	} `json:"course"`
}

func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var payload courseUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "invalid course payload")
		return
	}
	s.mu.Lock()
	s.nextID++
	course := &Course{
		ID:            s.nextID,
		Name:          payload.Course.Name,
		CourseCode:    payload.Course.CourseCode,
		AccountID:     urlID(r, "accountID"),
		WorkflowState: "unpublished",
	}
	s.courses[course.ID] = course
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) updateCourse(w http.ResponseWriter, r *http.Request) {
	var payload courseUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "invalid course payload")
		return
	}
	s.mu.Lock()
	course, ok := s.courses[urlID(r, "courseID")]
	if ok {
		if payload.Course.Name != "" {
			course.Name = payload.Course.Name
		}
		if payload.Course.CourseCode != "" {
			course.CourseCode = payload.Course.CourseCode
		}
	}
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (s *Server) deleteCourse(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	course, ok := s.courses[urlID(r, "courseID")]
	if ok {
		course.WorkflowState = "deleted"
	}
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"delete": true})
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	byID := s.assignments[urlID(r, "courseID")]
	out := make([]*Assignment, 0, len(byID))
	for _, a := range byID {
		out = append(out, a)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	assignment, ok := s.assignments[urlID(r, "courseID")][urlID(r, "assignmentID")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (s *Server) gradeSubmission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Submission struct {
			PostedGrade string `json:"posted_grade"`
		} `json:"submission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "invalid submission payload")
		return
	}
	grade := payload.Submission.PostedGrade
	out := map[string]any{
		"id":            1,
		"assignment_id": urlID(r, "assignmentID"),
		"user_id":       urlID(r, "userID"),
		"grade":         grade,
	}
	if score, err := strconv.ParseFloat(grade, 64); err == nil {
		out["score"] = score
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user, ok := s.users[urlID(r, "userID")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user, ok := s.users[urlID(r, "userID")]
	s.mu.Unlock()
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            user.ID,
		"name":          user.Name,
		"short_name":    user.ShortName,
		"primary_email": user.LoginID,
		"login_id":      user.LoginID,
	})
}

func urlID(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"errors": []map[string]string{{"message": "The specified resource does not exist."}},
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"errors": []map[string]string{{"message": msg}},
	})
}
