package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"gamescrow/internal/adapter/api/handler"
	"gamescrow/internal/adapter/repository"
	domainrepo "gamescrow/internal/domain/repository"
	"gamescrow/internal/domain/service"
	"gamescrow/internal/infrastructure/auth"
	"gamescrow/internal/infrastructure/catalog"
	"gamescrow/internal/infrastructure/firebase"
	"gamescrow/internal/infrastructure/realtime"
	"gamescrow/internal/infrastructure/storage"
	"gamescrow/pkg/config"
	"gamescrow/pkg/logger"
)

// dependencies holds the backends selected by configuration.
type dependencies struct {
	tx          domainrepo.Transactor
	orders      domainrepo.OrderRepository
	idempotency domainrepo.IdempotencyRepository
	wallets     domainrepo.WalletRepository
	chats       domainrepo.ChatRepository

	catalog     service.ItemCatalog
	verifier    service.TokenVerifier
	attachments service.AttachmentStorage
	devTokens   handler.DevTokenIssuer

	bridge       *realtime.PGBridge
	healthChecks map[string]handler.HealthCheck
	closers      []func() error

	firebaseApp *fbapp.App
	firestore   *firestore.Client
	hub         *realtime.Hub
}

func newDependencies(ctx context.Context, cfg *config.Config, hub *realtime.Hub) (*dependencies, error) {
	d := &dependencies{
		healthChecks: make(map[string]handler.HealthCheck),
		hub:          hub,
	}

	steps := []func(context.Context, *config.Config) error{
		d.setupStorage,
		d.setupCatalog,
		d.setupAuth,
		d.setupAttachments,
	}
	for _, step := range steps {
		if err := step(ctx, cfg); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Warn("Failed to close dependency: %v", err)
		}
	}
	d.closers = nil
}

func (d *dependencies) setupStorage(ctx context.Context, cfg *config.Config) error {
	switch cfg.StorageDriver {
	case "memory":
		store := repository.NewMemoryStore()
		d.tx = store
		d.orders = repository.NewMemoryOrderRepository(store)
		d.idempotency = repository.NewMemoryIdempotencyRepository(store)
		d.wallets = repository.NewMemoryWalletRepository(store)
		d.chats = repository.NewMemoryChatRepository(store)
		logger.Warn("Using in-memory storage; state is lost on restart")

	case "postgres":
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		db, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		d.closers = append(d.closers, db.Close)

		store := repository.NewPostgresStore(db)
		d.tx = store
		d.orders = repository.NewPostgresOrderRepository(store)
		d.idempotency = repository.NewPostgresIdempotencyRepository(store)
		d.wallets = repository.NewPostgresWalletRepository(store)
		d.chats = repository.NewPostgresChatRepository(store)
		d.healthChecks["postgres"] = db.PingContext

		if cfg.RealtimePGBridge {
			d.bridge = realtime.NewPGBridge(db, cfg.DatabaseURL, d.hub)
		}

	case "firestore":
		client, err := d.firestoreClient(ctx, cfg)
		if err != nil {
			return err
		}
		d.tx = repository.NewFirestoreStore(client)
		d.orders = repository.NewFirestoreOrderRepository(client)
		d.idempotency = repository.NewFirestoreIdempotencyRepository(client)
		d.wallets = repository.NewFirestoreWalletRepository(client)
		d.chats = repository.NewFirestoreChatRepository(client)

	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	return nil
}

func (d *dependencies) setupCatalog(ctx context.Context, cfg *config.Config) error {
	switch cfg.CatalogProvider {
	case "http":
		if cfg.CatalogBaseURL == "" {
			return fmt.Errorf("CATALOG_BASE_URL is required for the http catalog")
		}
		d.catalog = catalog.NewHTTPCatalog(cfg.CatalogBaseURL, cfg.CatalogTimeout)
	case "firestore":
		client, err := d.firestoreClient(ctx, cfg)
		if err != nil {
			return err
		}
		d.catalog = repository.NewFirestoreProductCatalog(client)
	case "memory":
		d.catalog = catalog.NewMemoryCatalog()
		logger.Warn("Using the in-memory item catalog; no items are listed")
	default:
		return fmt.Errorf("unknown CATALOG_PROVIDER %q", cfg.CatalogProvider)
	}
	return nil
}

func (d *dependencies) setupAuth(ctx context.Context, cfg *config.Config) error {
	switch cfg.AuthProvider {
	case "jwt":
		verifier := auth.NewJWTVerifier(cfg.JWTSecret)
		d.verifier = verifier
		ttl := time.Duration(cfg.JWTExpiry) * time.Second
		d.devTokens = func(ctx context.Context, uid, role string) (string, error) {
			return verifier.Issue(uid, role, ttl)
		}
	case "firebase":
		app, err := d.firebase(ctx, cfg)
		if err != nil {
			return err
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize Firebase Auth: %v", err)
		}
		client := firebase.NewFirebaseAuthClient(authClient)
		d.verifier = client
		d.devTokens = client.GenerateCustomToken
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}
	return nil
}

func (d *dependencies) setupAttachments(ctx context.Context, cfg *config.Config) error {
	if cfg.StorageBucket == "" {
		logger.Warn("STORAGE_BUCKET not set; attachment uploads are disabled")
		return nil
	}
	client, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, googleOptions(cfg)...)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, client.Close)
	d.attachments = client
	return nil
}

func (d *dependencies) firebase(ctx context.Context, cfg *config.Config) (*fbapp.App, error) {
	if d.firebaseApp != nil {
		return d.firebaseApp, nil
	}
	app, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, googleOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}
	d.firebaseApp = app
	return app, nil
}

func (d *dependencies) firestoreClient(ctx context.Context, cfg *config.Config) (*firestore.Client, error) {
	if d.firestore != nil {
		return d.firestore, nil
	}
	client, err := firestore.NewClient(ctx, cfg.FirebaseProject, googleOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %v", err)
	}
	d.firestore = client
	d.closers = append(d.closers, client.Close)
	d.healthChecks["firestore"] = func(ctx context.Context) error {
		_, err := client.Collection("orders").Limit(1).Documents(ctx).GetAll()
		return err
	}
	return client, nil
}

// googleOptions picks the service account from FIREBASE_SERVICE_ACCOUNT_JSON,
// then FIREBASE_SERVICE_ACCOUNT_PATH, else application default credentials.
func googleOptions(cfg *config.Config) []option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))}
	}
	if cfg.FirebaseServiceAccountPath != "" {
		if _, err := os.Stat(cfg.FirebaseServiceAccountPath); err == nil {
			return []option.ClientOption{option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)}
		}
		logger.Warn("Service account file %s not found, using default credentials", cfg.FirebaseServiceAccountPath)
	}
	return nil
}
