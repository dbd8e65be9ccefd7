package api

import (
	"net/http"
	"strconv"

	"github.com/openfroyo/heatdriver/pkg/driverfiles"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/stores"
)

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body ExecuteRequest
	if err := s.decoder.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	var files engine.DriverFiles
	if body.DriverFiles != "" {
		ws, err := s.extractFiles(body.DriverFiles)
		if err != nil {
			writeError(w, err)
			return
		}
		files = ws
	}

	// the orchestrator owns files from here and removes them
	resp, err := s.lifecycle.ExecuteLifecycle(r.Context(), body.toEngine(files))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	var body ExecutionRequest
	if err := s.decoder.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	exec, err := s.lifecycle.GetLifecycleExecution(r.Context(), r.PathValue("requestId"), body.DeploymentLocation.toEngine())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleFindReference(w http.ResponseWriter, r *http.Request) {
	var body FindReferenceRequest
	if err := s.decoder.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	ws, err := s.extractFiles(body.DriverFiles)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.lifecycle.FindReference(r.Context(), body.InstanceName, ws, body.DeploymentLocation.toEngine())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	var body PingRequest
	if err := s.decoder.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pinger.Ping(r.Context(), body.DeploymentLocation.toEngine()))
}

// RequestList is the body of the request listing endpoint.
type RequestList struct {
	Requests []*stores.Request `json:"requests"`
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stores.RequestFilter{
		Operation: q.Get("operation"),
		StackID:   q.Get("stackId"),
		Location:  q.Get("location"),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, engine.NewInvalidRequestError("limit must be a non-negative integer"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, engine.NewInvalidRequestError("offset must be a non-negative integer"))
		return
	}

	requests, err := s.journal.Recent(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestList{Requests: requests})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractFiles unpacks uploaded driver files. Archive problems are driver
// files errors.
func (s *Server) extractFiles(encoded string) (*driverfiles.Workspace, error) {
	ws, err := driverfiles.FromBase64Zip(encoded, driverfiles.ExtractOptions{
		BaseDir: s.cfg.FilesDir,
		MaxSize: s.cfg.MaxUploadBytes,
	})
	if err != nil {
		return nil, engine.NewDriverFilesError("Invalid driver files: %v", err)
	}
	return ws, nil
}
