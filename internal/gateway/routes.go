package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routes builds the chi router for every HTTP endpoint.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1/agents", func(r chi.Router) {
		r.Get("/", s.handleListAgents)
		r.Post("/", s.handleCreateAgent)

		r.Route("/{agentID}", func(r chi.Router) {
			r.Get("/", s.handleGetAgent)
			r.Put("/", s.handleUpdateAgent)
			r.Delete("/", s.handleDeleteAgent)
			r.Post("/documents", s.handleUploadDocuments)

			// Token-authenticated endpoints for deployed agents.
			r.Post("/chat", s.handleAgentChat)
			r.Get("/ws", s.handleWebSocket)

			r.Route("/chat/sessions", func(r chi.Router) {
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Patch("/", s.handleRenameSession)
					r.Delete("/", s.handleDeleteSession)
					r.Get("/messages", s.handleListMessages)
					r.Post("/messages", s.handleSendMessage)
					r.Delete("/messages", s.handleClearMessages)
					r.Put("/messages/{index}", s.handleEditMessage)
					r.Delete("/messages/{index}", s.handleDeleteMessage)
					r.Post("/regenerate", s.handleRegenerate)
				})
			})

			r.Route("/deployment", func(r chi.Router) {
				r.Get("/", s.handleDeploymentStatus)
				r.Post("/", s.handleDeploy)
				r.Delete("/", s.handleRevoke)
				r.Get("/postman", s.handlePostman)
			})
		})
	})

	return r
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}
