package service

import (
	"seminarbuchung/internal/pricing"
)

// Dependencies are the stores and clients the services are built from.
// Ledger, Cache and Searcher are optional.
type Dependencies struct {
	Bookings  BookingStore
	Customers CustomerStore
	Catalog   Catalog
	Vouchers  pricing.VoucherStore
	Gateway   PaymentGateway
	Publisher Publisher
	Ledger    WebhookLedger
	Cache     SeminarCache
	Searcher  SessionSearcher
	Pricing   pricing.Config
}

type Services struct {
	Bookings *BookingService
	Payments *PaymentVerifier
	Webhooks *WebhookReconciler
	Vouchers *VoucherService
	Catalog  *CatalogService
	Titles   *SessionTitler
}

func NewServices(deps Dependencies) *Services {
	resolver := pricing.NewResolver(deps.Catalog, deps.Pricing)
	evaluator := pricing.NewEvaluator(deps.Vouchers, nil)
	quoter := pricing.NewQuoter(resolver, evaluator)

	verifier := NewPaymentVerifier(deps.Gateway)
	titler := NewSessionTitler(deps.Catalog, deps.Publisher)
	linker := NewCustomerLinker(deps.Customers, deps.Bookings)

	return &Services{
		Bookings: NewBookingService(deps.Bookings, quoter, verifier, linker, titler, deps.Publisher),
		Payments: verifier,
		Webhooks: NewWebhookReconciler(deps.Gateway, deps.Bookings, deps.Ledger, deps.Publisher),
		Vouchers: NewVoucherService(quoter),
		Catalog:  NewCatalogService(deps.Catalog, deps.Cache, deps.Searcher),
		Titles:   titler,
	}
}
