package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// CompanyResolver extracts the acting company from a request. Authentication
// and membership checks are the host application's concern; a typical resolver
// reads the company from the session or tenant context set by upstream
// middleware.
type CompanyResolver func(r *http.Request) (uuid.UUID, error)

// RouterOptions configures the billing module router.
type RouterOptions struct {
	// Service is the subscription lifecycle engine. Required.
	Service subscription.Service

	// ResolveCompany maps requests on the command endpoints to a company ID.
	// Required for everything except the webhook endpoint.
	ResolveCompany CompanyResolver

	// Middleware is applied to the command endpoints only. The webhook
	// endpoint stays outside it: the billing provider cannot carry session
	// auth, it authenticates via payload signature instead.
	Middleware []func(http.Handler) http.Handler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Router creates the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Service:        svc,
//	    ResolveCompany: resolveFromSession,
//	    Middleware:     []func(http.Handler) http.Handler{requireMember},
//	}))
func Router(opts RouterOptions) chi.Router {
	if opts.Service == nil {
		panic("billing: Service is required")
	}
	if opts.ResolveCompany == nil {
		panic("billing: CompanyResolver is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	h := &handlers{
		svc:            opts.Service,
		resolveCompany: opts.ResolveCompany,
		log:            opts.Logger,
	}

	r := chi.NewRouter()

	r.Post("/webhook", h.handleWebhook)

	r.Group(func(cmd chi.Router) {
		cmd.Use(opts.Middleware...)

		cmd.Get("/info", h.handleInfo)
		cmd.Post("/setup-intent", h.handleSetupIntent)
		cmd.Post("/subscribe", h.handleSubscribe)
		cmd.Post("/cancel", h.handleCancel)
		cmd.Post("/seats", h.handleAddSeat)
		cmd.Delete("/seats/{memberID}", h.handleRemoveSeat)
	})

	return r
}
