package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/config"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/domain"
	"github.com/hamzahsivrikaya-del/hamza-web-site-sub000/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const connectTimeout = 10 * time.Second

// Backend is an opened ledger store plus the member roster next to it
type Backend struct {
	Store   domain.LedgerStore
	Members domain.MemberRepository
	// MongoDB is set only for the mongo backend; push tokens live there.
	MongoDB *mongo.Database
	Close   func()
}

// OpenBackend connects the store selected by cfg.Ledger.Backend
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Ledger.Backend {
	case config.BackendMongo:
		return openMongo(ctx, cfg)
	case config.BackendPostgres:
		return openPostgres(ctx, cfg)
	case config.BackendMemory:
		log.Println("⚠ Using the in-memory ledger; data is lost on restart")
		store := repository.NewMemoryLedgerStore()
		return &Backend{Store: store, Members: store, Close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func openMongo(ctx context.Context, cfg *config.Config) (*Backend, error) {
	ctxMongo, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	// Add OTEL monitor for MongoDB tracing
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	client, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctxMongo, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("✓ MongoDB connected")

	db := client.Database(cfg.MongoDB.Database)
	return &Backend{
		Store:   repository.NewMongoLedgerStore(db),
		Members: repository.NewMongoMemberRepository(db),
		MongoDB: db,
		Close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Backend, error) {
	ctxPg, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := repository.NewPostgresPool(ctxPg, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}
	log.Println("✓ PostgreSQL connected")

	return &Backend{
		Store:   repository.NewPostgresLedgerStore(pool),
		Members: repository.NewPostgresMemberRepository(pool),
		Close:   pool.Close,
	}, nil
}
