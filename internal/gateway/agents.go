package gateway

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soyeahso/agentforge/internal/domain"
	"github.com/soyeahso/agentforge/internal/resource"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to temporary files.
const maxUploadMemory = 32 << 20

// agentRequest is the body of agent create and update calls. Nil fields
// are left unchanged on update.
type agentRequest struct {
	Name      *string            `json:"name"`
	Role      *string            `json:"role"`
	Backstory *string            `json:"backstory"`
	Goal      *string            `json:"goal"`
	Resources *[]domain.Resource `json:"resources"`
}

func (req agentRequest) apply(a *domain.Agent) {
	if req.Name != nil {
		a.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		a.Role = strings.TrimSpace(*req.Role)
	}
	if req.Backstory != nil {
		a.Backstory = strings.TrimSpace(*req.Backstory)
	}
	if req.Goal != nil {
		a.Goal = strings.TrimSpace(*req.Goal)
	}
	if req.Resources != nil {
		a.Resources = *req.Resources
	}
}

func isMultipart(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "multipart/form-data"
}

// parseAgentRequest accepts either a JSON body or a multipart form whose
// "resources" field holds a JSON array and whose "documents" parts are
// files to attach.
func parseAgentRequest(w http.ResponseWriter, r *http.Request) (agentRequest, []*multipart.FileHeader, error) {
	var req agentRequest
	if !isMultipart(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			return req, nil, badRequest("Invalid request body: %v", err)
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return req, nil, badRequest("Invalid form: %v", err)
	}
	field := func(name string) *string {
		if vs, ok := r.MultipartForm.Value[name]; ok && len(vs) > 0 {
			return &vs[0]
		}
		return nil
	}
	req.Name = field("name")
	req.Role = field("role")
	req.Backstory = field("backstory")
	req.Goal = field("goal")
	if raw := field("resources"); raw != nil && strings.TrimSpace(*raw) != "" {
		var resources []domain.Resource
		if err := json.Unmarshal([]byte(*raw), &resources); err != nil {
			return req, nil, badRequest("Invalid resources format: %v", err)
		}
		req.Resources = &resources
	}
	return req, r.MultipartForm.File["documents"], nil
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.svc.Agents.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	respondOK(w, pluralize(len(agents), "agent"), agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Agents.Get(chi.URLParam(r, "agentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Agent retrieved successfully", a)
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	req, files, err := parseAgentRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var a domain.Agent
	req.apply(&a)
	created, err := s.svc.Agents.Create(a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(files) > 0 {
		if created, err = s.attachDocuments(created.ID, files); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	respondOK(w, "Agent created successfully", created)
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	req, files, err := parseAgentRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	updated, err := s.svc.Agents.Update(agentID, func(a *domain.Agent) error {
		req.apply(a)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(files) > 0 {
		if updated, err = s.attachDocuments(agentID, files); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	respondOK(w, "Agent updated successfully", updated)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if err := s.svc.Agents.Delete(agentID); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.svc.Deployments.Forget(agentID); err != nil {
		s.log.Warn().Err(err).Str("agent_id", agentID).Msg("failed to drop token index entry")
	}
	s.disconnectAgent(agentID, "deleted")
	respondOK(w, "Agent deleted successfully", nil)
}

func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	if _, err := s.svc.Agents.Get(agentID); err != nil {
		s.fail(w, r, err)
		return
	}
	if !isMultipart(r) {
		s.fail(w, r, badRequest("expected multipart/form-data"))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.fail(w, r, badRequest("Invalid form: %v", err))
		return
	}
	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		s.fail(w, r, badRequest("no documents uploaded"))
		return
	}

	a, err := s.attachDocuments(agentID, files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondOK(w, "Documents uploaded successfully", a)
}

// attachDocuments stores the uploaded files and adds a document resource
// for each one the agent does not already reference. Files that cannot be
// stored are skipped.
func (s *Server) attachDocuments(agentID string, files []*multipart.FileHeader) (*domain.Agent, error) {
	var added []domain.Resource
	for _, fh := range files {
		stored, err := s.saveUpload(agentID, fh)
		if err != nil {
			s.log.Warn().Err(err).Str("agent_id", agentID).Str("file", fh.Filename).Msg("skipping document upload")
			continue
		}
		added = append(added, domain.Resource{
			Type:  domain.ResourceDocument,
			Name:  strings.TrimSuffix(stored, filepath.Ext(stored)),
			Value: stored,
		})
	}

	return s.svc.Agents.Update(agentID, func(a *domain.Agent) error {
		existing := make(map[string]bool)
		for _, d := range a.ResourcesOf(domain.ResourceDocument) {
			existing[d.Value] = true
		}
		for _, res := range added {
			if !existing[res.Value] {
				a.Resources = append(a.Resources, res)
				existing[res.Value] = true
			}
		}
		return nil
	})
}

func (s *Server) saveUpload(agentID string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > resource.MaxDocumentSize {
		return "", resource.ErrDocumentTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.svc.Documents.Save(agentID, fh.Filename, f)
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "Found 1 " + noun
	}
	return "Found " + strconv.Itoa(n) + " " + noun + "s"
}
