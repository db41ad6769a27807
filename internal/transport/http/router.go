// Package httptransport assembles the public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	anchorhandler "veritas/internal/anchor/handler"
	credentialhandler "veritas/internal/credential/handler"
	"veritas/internal/platform/health"
	"veritas/internal/platform/middleware"
	proofhandler "veritas/internal/proof/handler"
	statushandler "veritas/internal/status/handler"
	verificationhandler "veritas/internal/verification/handler"
)

// maxBodyBytes bounds request bodies before JSON decoding.
const maxBodyBytes = 1 << 20

// Handlers groups the per-module HTTP handlers mounted on the router.
type Handlers struct {
	Credential   *credentialhandler.Handler
	Proof        *proofhandler.Handler
	Status       *statushandler.Handler
	Anchor       *anchorhandler.Handler
	Verification *verificationhandler.Handler
	Health       *health.Handler
}

// NewRouter wires all public endpoints with the middleware stack.
func NewRouter(h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	h.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		h.Credential.Register(r)
		h.Proof.Register(r)
		h.Status.Register(r)
		h.Anchor.Register(r)
		h.Verification.Register(r)
	})

	return r
}
