// Package server exposes the bridge's catalog and job operations over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/datalinkhq/bqbridge/pkg/commit"
	"github.com/datalinkhq/bqbridge/pkg/health"
	"github.com/datalinkhq/bqbridge/pkg/jobstore"
	"github.com/datalinkhq/bqbridge/pkg/metastore"
)

// Version is set at build time.
var Version = "dev"

// Server wires the object store, job store, and committer into an HTTP API.
type Server struct {
	store     metastore.ObjectStore
	jobs      jobstore.Store
	committer *commit.Committer
	checker   *health.Checker
}

// New creates a Server over the given collaborators. A nil checker gets a
// state-only one that reports ready immediately.
func New(store metastore.ObjectStore, jobs jobstore.Store, committer *commit.Committer, checker *health.Checker) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: object store is required")
	}
	if jobs == nil {
		return nil, errors.New("server: job store is required")
	}
	if committer == nil {
		return nil, errors.New("server: committer is required")
	}
	if checker == nil {
		checker = health.NewChecker(nil)
		checker.SetReady()
	}
	return &Server{store: store, jobs: jobs, committer: committer, checker: checker}, nil
}

// Router builds the chi router for the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Get("/healthz", s.checker.LivenessHandler())
	r.Get("/readyz", s.checker.ReadinessHandler())
	r.Get("/version", s.handleVersion)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/tables/{db}/{table}", func(r chi.Router) {
			r.Get("/", s.handleGetTable)
			r.Get("/partitions", s.handlePartitions)
			r.Get("/partition-names", s.handlePartitionNames)
			r.Post("/partitions/query", s.handlePartitionsByFilter)
		})
		r.Route("/jobs/{key}", func(r chi.Router) {
			r.Put("/", s.handlePutJob)
			r.Post("/commit", s.handleCommit)
			r.Post("/abort", s.handleAbort)
		})
	})

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.store.GetTable(r.Context(), tableRefFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

// handlePartitions serves full partition listings. With a "values" query
// parameter it narrows to partial partition values, optionally scoped by the
// calling user and groups.
func (s *Server) handlePartitions(w http.ResponseWriter, r *http.Request) {
	ref := tableRefFromRequest(r)
	maxParts := intQuery(r, "max")

	if values, ok := r.URL.Query()["values"]; ok {
		user := r.URL.Query().Get("user")
		groups := r.URL.Query()["group"]
		parts, err := s.store.PartitionsWithAuth(r.Context(), ref, values, maxParts, user, groups)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, partitionListing{Partitions: parts})
		return
	}

	parts, err := s.store.Partitions(r.Context(), ref, maxParts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partitionListing{Partitions: parts})
}

func (s *Server) handlePartitionNames(w http.ResponseWriter, r *http.Request) {
	ref := tableRefFromRequest(r)
	maxParts := intQuery(r, "max")

	var (
		names []string
		err   error
	)
	if values, ok := r.URL.Query()["values"]; ok {
		names, err = s.store.PartitionNamesByValues(r.Context(), ref, values, maxParts)
	} else {
		names, err = s.store.PartitionNames(r.Context(), ref, maxParts)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

// partitionFilterRequest carries an encoded predicate tree pushed down by the
// query engine.
type partitionFilterRequest struct {
	Filter          json.RawMessage `json:"filter,omitempty"`
	DefaultPartName string          `json:"default_partition_name,omitempty"`
	MaxParts        int             `json:"max_parts,omitempty"`
}

type partitionListing struct {
	Partitions      []metastore.Partition `json:"partitions"`
	MayBeIncomplete bool                  `json:"may_be_incomplete,omitempty"`
}

func (s *Server) handlePartitionsByFilter(w http.ResponseWriter, r *http.Request) {
	var req partitionFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	parts, incomplete, err := s.store.PartitionsByFilter(
		r.Context(), tableRefFromRequest(r), req.Filter, req.DefaultPartName, req.MaxParts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partitionListing{Partitions: parts, MayBeIncomplete: incomplete})
}

// handlePutJob registers job details under the job key before the write
// phase starts. A missing job id gets one assigned.
func (s *Server) handlePutJob(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "key")

	var details jobstore.Details
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	details.TableKey = jobKey
	if details.JobID == "" {
		details.JobID = uuid.NewString()
	}

	if err := s.jobs.Write(r.Context(), details); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("job registered", "job", jobKey, "job_id", details.JobID)
	writeJSON(w, http.StatusCreated, details)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "key")
	if err := s.committer.CommitJob(r.Context(), jobKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": jobKey, "state": "committed"})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "key")
	status := intQuery(r, "status")
	if err := s.committer.AbortJob(r.Context(), jobKey, status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": jobKey, "state": "aborted"})
}

func tableRefFromRequest(r *http.Request) metastore.TableRef {
	return metastore.TableRef{
		Database: chi.URLParam(r, "db"),
		Name:     chi.URLParam(r, "table"),
	}
}

func intQuery(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

// writeError maps store and job errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, metastore.ErrTableNotFound), errors.Is(err, jobstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, metastore.ErrPartitionValuesRequired):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
