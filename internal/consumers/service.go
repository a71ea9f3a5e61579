package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"seminarbuchung/internal/cache"
	"seminarbuchung/internal/config"
	"seminarbuchung/internal/database"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/messaging"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/repository"
	"seminarbuchung/internal/search"
	"seminarbuchung/internal/service"

	"github.com/nats-io/stan.go"
)

const queueGroup = "consumers"

// ConsumerService owns the connections of the consumers process.
// Elasticsearch and Valkey are optional.
type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	es       *search.ElasticsearchClient
	valkey   *cache.ValkeyClient
	repos    *repository.Repositories
	services *service.Services
	subs     []stan.Subscription
}

func NewConsumerService(ctx context.Context, cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	cs := &ConsumerService{db: db, nats: natsClient}
	deps := service.Dependencies{Pricing: cfg.Pricing, Publisher: natsClient}

	var tokens external.TokenCache
	if cfg.ValkeyEnabled {
		valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, catalog cache is not invalidated", "error", err)
		} else {
			cs.valkey = valkeyClient
			tokens = valkeyClient
		}
	}

	if cfg.ElasticsearchEnabled {
		esClient, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, search sync disabled", "error", err)
		} else {
			cs.es = esClient
		}
	}

	cs.repos = repository.NewRepositories(db)
	deps.Bookings = cs.repos.Bookings
	deps.Customers = cs.repos.Customers
	deps.Catalog = cs.repos.Catalog
	deps.Vouchers = cs.repos.Vouchers
	deps.Gateway = external.NewPayPalClient(cfg.PayPal, tokens)

	cs.services = service.NewServices(deps)
	return cs, nil
}

func (cs *ConsumerService) Catalog() *repository.CatalogRepository {
	return cs.repos.Catalog
}

// Search returns nil when Elasticsearch is disabled
func (cs *ConsumerService) Search() *search.ElasticsearchClient {
	return cs.es
}

// Cache returns nil when Valkey is disabled
func (cs *ConsumerService) Cache() *cache.ValkeyClient {
	return cs.valkey
}

func (cs *ConsumerService) Bookings() *service.BookingService {
	return cs.services.Bookings
}

// Start subscribes the handlers. sync may be nil.
func (cs *ConsumerService) Start(ctx context.Context, sync SessionSyncer) error {
	slog.Info("Starting NATS consumers...")

	h := NewHandlers(sync)
	routes := []struct {
		subject string
		fn      MessageHandler
	}{
		{models.EventBookingCreated, h.HandleBookingCreated},
		{models.EventBookingPaid, h.HandleBookingPaid},
		{models.EventPaymentVerificationFailed, h.HandlePaymentVerificationFailed},
		{models.EventSessionTitleChanged, h.HandleSessionTitleChanged},
	}

	for _, r := range routes {
		sub, err := cs.nats.SubscribeQueue(r.subject, queueGroup, Adapt(ctx, r.subject, r.fn))
		if err != nil {
			return err
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subjects", len(routes))
	return nil
}

func (cs *ConsumerService) Shutdown() error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		// Close, не Unsubscribe: durable подписка должна пережить рестарт
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.valkey != nil {
		if err := cs.valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
