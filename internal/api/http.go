package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/heysubinoy/rollbook/internal/service"
	"github.com/heysubinoy/rollbook/internal/store"
	"github.com/heysubinoy/rollbook/pkg/roster"
)

// Server wraps a service.Roster and exposes HTTP endpoints for it.
// When Raft is set, writes on followers are redirected to the leader.
type Server struct {
	Roster *service.Roster
	Raft   *store.RaftStore
	logger hclog.Logger

	// httpPort is appended to the leader's raft host when redirecting.
	httpPort string
}

// NewServer creates a new HTTP server. raftStore may be nil.
func NewServer(svc *service.Roster, raftStore *store.RaftStore, httpAddr string, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	_, port, _ := net.SplitHostPort(httpAddr)
	return &Server{
		Roster:   svc,
		Raft:     raftStore,
		logger:   logger,
		httpPort: port,
	}
}

// RegisterRoutes registers all HTTP handlers on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/students", s.handleStudents)
	mux.HandleFunc("/students/search", s.handleSearch)
	mux.HandleFunc("/students/remove", s.handleRemove)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/load", s.handleLoad)
	mux.HandleFunc("/export", s.handleExport)
	if s.Raft != nil {
		mux.HandleFunc("/join", s.handleJoin)
	}
}

// studentJSON is the wire shape of a record in responses.
type studentJSON struct {
	Name       string `json:"name"`
	RollNumber int    `json:"roll_number"`
	Grade      string `json:"grade"`
}

func toJSON(r roster.Record) studentJSON {
	return studentJSON{Name: r.Name(), RollNumber: r.RollNumber(), Grade: r.Grade()}
}

// formValue accepts a JSON string or number and keeps its text, so
// {"roll_number": 7} and {"roll_number": "7"} both reach validation as "7".
// null reads as an empty field; objects, arrays and booleans are rejected.
type formValue string

func (v *formValue) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*v = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = formValue(s)
	case len(b) > 0 && (b[0] == '-' || (b[0] >= '0' && b[0] <= '9')):
		*v = formValue(b)
	default:
		return fmt.Errorf("form field must be a string or number, got %s", b)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// redirectToLeader returns true if the request was answered because this node
// cannot accept writes.
func (s *Server) redirectToLeader(w http.ResponseWriter, r *http.Request) bool {
	if s.Raft == nil || s.Raft.IsLeader() {
		return false
	}
	leader, _ := s.Raft.Leader()
	if leader == "" {
		http.Error(w, "Not leader and no leader known", http.StatusServiceUnavailable)
		return true
	}
	host, _, err := net.SplitHostPort(string(leader))
	if err != nil {
		host = string(leader)
	}
	w.Header().Set("Location", "http://"+net.JoinHostPort(host, s.httpPort)+r.URL.RequestURI())
	http.Error(w, "Not leader. Redirect to leader.", http.StatusTemporaryRedirect)
	return true
}

// handleStudents handles GET /students (list) and POST /students (add).
// POST expects: {"name": "Alice", "roll_number": "1", "grade": "A"}
func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records := s.Roster.ListStudents()
		out := make([]studentJSON, 0, len(records))
		for _, rec := range records {
			out = append(out, toJSON(rec))
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		if s.redirectToLeader(w, r) {
			return
		}
		var req struct {
			Name       formValue `json:"name"`
			RollNumber formValue `json:"roll_number"`
			Grade      formValue `json:"grade"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		rec, err := s.Roster.AddStudent(string(req.Name), string(req.RollNumber), string(req.Grade))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toJSON(rec))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSearch handles GET /students/search?roll=1 requests.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rec, err := s.Roster.SearchStudent(r.URL.Query().Get("roll"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(rec))
}

// handleRemove handles POST /students/remove requests with JSON body.
// Expects: {"roll_number": "1"}
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		RollNumber formValue `json:"roll_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.Roster.RemoveStudent(string(req.RollNumber)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderSpreadsheet is replaced in tests to simulate export failures.
var renderSpreadsheet = (*service.Roster).ExportSpreadsheet

type pathRequest struct {
	Path string `json:"path"`
}

// handleSave handles POST /save requests. Expects: {"path": "class.rbk"}
// Followers may save their own replica.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.Roster.SaveToDestination(req.Path); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoad handles POST /load requests. Expects: {"path": "class.rbk"}
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.Roster.LoadFromSource(req.Path); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport handles GET /export and returns the roster as an .xlsx file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var buf bytes.Buffer
	if err := renderSpreadsheet(s.Roster, &buf); err != nil {
		s.logger.Error("export failed", "error", err)
		http.Error(w, "Failed to export roster", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="students.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

// handleJoin handles POST /join requests from nodes joining the cluster.
// Expects: {"id": "node2", "addr": "10.0.0.2:7001"}
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.redirectToLeader(w, r) {
		return
	}

	var req struct {
		ID   string `json:"id"`
		Addr string `json:"addr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Addr == "" {
		http.Error(w, "Missing id or addr field", http.StatusBadRequest)
		return
	}

	if err := s.Raft.Join(req.ID, req.Addr); err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("node joined", "id", req.ID, "addr", req.Addr)
	w.WriteHeader(http.StatusNoContent)
}
