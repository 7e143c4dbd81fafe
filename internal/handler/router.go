package handler

import (
	"net/http"
	"time"

	"github.com/segyhp/loan-ledger/internal/metrics"
	"github.com/segyhp/loan-ledger/pkg/auth"
	"github.com/segyhp/loan-ledger/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter wires the public routes. Everything under /api/v1 requires a
// bearer token; approve and reject additionally require an operator.
func NewRouter(
	loanHandler *LoanHandler,
	healthHandler *HealthHandler,
	jwtService *auth.JWTService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.CORSMiddleware, response.LoggingMiddleware(logger), metricsMiddleware(m))

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", m.Handler()).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(jwtService))

	operator := auth.RequireRole(auth.RoleOperator, auth.RoleAdmin)

	api.HandleFunc("/loans/apply", loanHandler.Apply).Methods("POST")
	api.HandleFunc("/loans/calculate", loanHandler.Calculate).Methods("POST")
	api.HandleFunc("/loans/calculate/{loanId}", loanHandler.Calculate).Methods("POST")
	api.HandleFunc("/loans", loanHandler.ListLoans).Methods("GET")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.Handle("/loans/{loanId}/approve", operator(http.HandlerFunc(loanHandler.Approve))).Methods("POST")
	api.Handle("/loans/{loanId}/reject", operator(http.HandlerFunc(loanHandler.Reject))).Methods("POST")
	api.HandleFunc("/loans/{loanId}/repayment", loanHandler.Repayment).Methods("POST")

	return router
}

func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := response.NewRecorder(w)

			next.ServeHTTP(recorder, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if template, err := current.GetPathTemplate(); err == nil {
					route = template
				}
			}
			m.ObserveHTTP(r.Method, route, recorder.StatusCode(), time.Since(start))
		})
	}
}
