package routes

import (
	"net/http"

	"github.com/solarmaint/backend/internal/api/handlers"
	"github.com/solarmaint/backend/internal/api/middleware"
	"github.com/solarmaint/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	authHandler      *handlers.AuthHandler
	chatHandler      *handlers.ChatHandler
	executionHandler *handlers.ExecutionHandler
	procedureHandler *handlers.ProcedureHandler
	tipHandler       *handlers.TipHandler
	settingHandler   *handlers.SettingHandler

	verifier middleware.TokenVerifier
	metrics  *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	executionHandler *handlers.ExecutionHandler,
	procedureHandler *handlers.ProcedureHandler,
	tipHandler *handlers.TipHandler,
	settingHandler *handlers.SettingHandler,
	verifier middleware.TokenVerifier,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		authHandler:      authHandler,
		chatHandler:      chatHandler,
		executionHandler: executionHandler,
		procedureHandler: procedureHandler,
		tipHandler:       tipHandler,
		settingHandler:   settingHandler,

		verifier: verifier,
		metrics:  metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Auth endpoints (public)
	r.mux.HandleFunc("POST /api/auth/register", r.authHandler.Register)
	r.mux.HandleFunc("POST /api/auth/login", r.authHandler.Login)
	r.mux.HandleFunc("POST /api/auth/logout", r.authHandler.Logout)
	r.protected("GET /api/auth/me", r.authHandler.Me)

	// Chat endpoints
	r.protected("POST /api/chat", r.chatHandler.HandleChat)
	r.protected("PUT /api/chat", r.chatHandler.HandleSelection)
	r.protected("POST /api/chat/feedback", r.chatHandler.HandleFeedback)
	r.protected("GET /api/chat/history", r.chatHandler.HandleHistory)
	r.protected("DELETE /api/chat/history", r.chatHandler.HandleClearHistory)

	// Execution endpoints
	r.protected("POST /api/executions", r.executionHandler.StartExecution)
	r.protected("GET /api/executions", r.executionHandler.ListExecutions)
	r.protected("GET /api/executions/{id}", r.executionHandler.GetExecution)
	r.protected("PUT /api/executions/{id}/step", r.executionHandler.UpdateStep)
	r.protected("PUT /api/executions/{id}/complete", r.executionHandler.CompleteExecution)

	// Procedure endpoints
	r.protected("GET /api/procedures", r.procedureHandler.ListProcedures)
	r.protected("POST /api/procedures", r.procedureHandler.CreateProcedure)
	r.protected("GET /api/procedures/{id}", r.procedureHandler.GetProcedure)
	r.protected("PUT /api/procedures/{id}", r.procedureHandler.UpdateProcedure)
	r.protected("DELETE /api/procedures/{id}", r.procedureHandler.DeleteProcedure)

	// Tip endpoints
	r.protected("GET /api/tips", r.tipHandler.ListTips)
	r.protected("POST /api/tips", r.tipHandler.CreateTip)
	r.protected("GET /api/tips/{id}", r.tipHandler.GetTip)
	r.protected("PUT /api/tips/{id}", r.tipHandler.UpdateTip)
	r.protected("DELETE /api/tips/{id}", r.tipHandler.DeleteTip)

	// Equipment reference data
	r.protected("GET /api/settings", r.settingHandler.ListSettings)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so error responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}

// protected registers a route behind the authenticator.
func (r *Router) protected(pattern string, handlerFunc http.HandlerFunc) {
	r.mux.Handle(pattern, middleware.Authenticator(r.verifier)(handlerFunc))
}
