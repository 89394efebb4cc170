package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"whisper/internal/audit"
	consolehandler "whisper/internal/console/handler"
	consoleservice "whisper/internal/console/service"
	identityhandler "whisper/internal/identity/handler"
	identityservice "whisper/internal/identity/service"
	identitystore "whisper/internal/identity/store"
	inboxhandler "whisper/internal/inbox/handler"
	inboxmetrics "whisper/internal/inbox/metrics"
	inboxservice "whisper/internal/inbox/service"
	jwttoken "whisper/internal/jwt_token"
	"whisper/internal/message/feed"
	"whisper/internal/message/models"
	messagestore "whisper/internal/message/store"
	"whisper/internal/platform/config"
	"whisper/internal/platform/kafka"
	"whisper/internal/platform/metrics"
	"whisper/internal/platform/postgres"
	redisclient "whisper/internal/platform/redis"
	"whisper/internal/provenance"
	relayhandler "whisper/internal/relay/handler"
	relaymetrics "whisper/internal/relay/metrics"
	relayservice "whisper/internal/relay/service"
	reporthandler "whisper/internal/report/handler"
	reportmetrics "whisper/internal/report/metrics"
	reportservice "whisper/internal/report/service"
	httptransport "whisper/internal/transport/http"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/circuit"
	"whisper/pkg/platform/tx"
)

const auditBuffer = 256

type messageStore interface {
	Append(ctx context.Context, draft models.Draft) (*models.Message, error)
	ListByRecipient(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error)
	ListAll(ctx context.Context) ([]*models.Message, error)
}

type userStore interface {
	identityservice.UserStore
	identitystore.Saver
}

type liveFeed interface {
	Publish(ctx context.Context, msg *models.Message) error
	Subscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, error)
}

type app struct {
	deps    httptransport.Deps
	closers []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for _, fn := range slices.Backward(a.closers) {
		fn()
	}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()
	health := map[string]httptransport.HealthCheck{}

	var (
		db       *sql.DB
		messages messageStore
		users    userStore
	)
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = db.Close() })
		if err = postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		messages = messagestore.NewPostgres(db)
		users = identitystore.NewPostgres(db)
		health["postgres"] = db.PingContext
	case config.BackendBadger:
		var bdb *badger.DB
		bdb, err = messagestore.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = bdb.Close() })
		var bstore *messagestore.Badger
		bstore, err = messagestore.NewBadger(bdb, messagestore.WithBadgerLogger(log))
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = bstore.Close() })
		messages = bstore
		users = identitystore.NewInMemory()
	default:
		messages = messagestore.NewInMemory()
		users = identitystore.NewInMemory()
	}

	if cfg.UsersSeedFile != "" {
		if err = seedUsers(ctx, db, cfg.UsersSeedFile, users, log); err != nil {
			return nil, err
		}
	}

	live, err := buildFeed(ctx, cfg, db, messages, log, a, health)
	if err != nil {
		return nil, err
	}

	auditStore, err := buildAuditStore(ctx, cfg, log, a)
	if err != nil {
		return nil, err
	}
	auditPublisher := audit.NewPublisher(auditStore,
		audit.WithLogger(log),
		audit.WithAsyncBuffer(auditBuffer),
	)
	a.onClose(auditPublisher.Close)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	identitySvc, err := identityservice.New(users, cfg.PublicOrigin, identityservice.WithLogger(log))
	if err != nil {
		return nil, err
	}
	relaySvc, err := relayservice.New(messages, live,
		relayservice.WithLogger(log),
		relayservice.WithAuditPublisher(auditPublisher),
		relayservice.WithMetrics(relaymetrics.New(nil)),
		relayservice.WithProvenance(buildLookup(cfg.Provenance, log), cfg.Provenance.Timeout),
		relayservice.WithMaxLength(cfg.Relay.MaxMessageLength),
	)
	if err != nil {
		return nil, err
	}
	inboxSvc, err := inboxservice.New(messages, live,
		inboxservice.WithLogger(log),
		inboxservice.WithMetrics(inboxmetrics.New(nil)),
		inboxservice.WithResyncInterval(cfg.Inbox.ResyncInterval),
		inboxservice.WithBackoff(0, cfg.Inbox.MaxBackoff),
	)
	if err != nil {
		return nil, err
	}
	reportSvc, err := reportservice.New(users, messages,
		reportservice.WithLogger(log),
		reportservice.WithAuditPublisher(auditPublisher),
		reportservice.WithMetrics(reportmetrics.New(nil)),
	)
	if err != nil {
		return nil, err
	}
	consoleSvc, err := consoleservice.New(jwtService, cfg.Auth.OperatorSecretHash,
		consoleservice.WithLogger(log),
		consoleservice.WithAuditPublisher(auditPublisher),
		consoleservice.WithTTL(cfg.Auth.CapabilityTTL),
	)
	if err != nil {
		return nil, err
	}
	if !consoleSvc.Enabled() {
		log.Warn("operator secret hash not set, console is disabled")
	}

	a.deps = httptransport.Deps{
		Logger:   log,
		Metrics:  metrics.New(nil),
		Tokens:   jwttoken.NewJWTServiceAdapter(jwtService),
		Health:   health,
		Identity: identityhandler.New(identitySvc, log),
		Relay:    relayhandler.New(relaySvc, log),
		Inbox:    inboxhandler.New(inboxSvc, log, cfg.PublicOrigin),
		Report:   reporthandler.New(reportSvc, log),
		Console:  consolehandler.New(consoleSvc, log),
	}
	return a, nil
}

// seedUsers loads the directory from a JSON file, in one transaction when the
// directory is in postgres.
func seedUsers(ctx context.Context, db *sql.DB, path string, users identitystore.Saver, log *slog.Logger) error {
	var n int
	load := func(ctx context.Context) error {
		var err error
		n, err = identitystore.LoadSeed(ctx, path, users)
		return err
	}
	var err error
	if db != nil {
		err = tx.Run(ctx, db, load)
	} else {
		err = load(ctx)
	}
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	log.Info("seeded user directory", "path", path, "users", n)
	return nil
}

func buildFeed(ctx context.Context, cfg config.Server, db *sql.DB, messages messageStore, log *slog.Logger, a *app, health map[string]httptransport.HealthCheck) (liveFeed, error) {
	switch cfg.FeedBackend {
	case config.FeedRedis:
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = client.Close() })
		health["redis"] = client.Health
		return feed.NewRedis(client.Client, feed.WithRedisLogger(log)), nil
	case config.FeedPostgres:
		loader, ok := messages.(feed.MessageLoader)
		if !ok || db == nil {
			return nil, fmt.Errorf("postgres feed requires the postgres store")
		}
		pgFeed, err := feed.NewPostgres(db, cfg.DatabaseURL, loader, feed.WithPostgresLogger(log))
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = pgFeed.Close() })
		return pgFeed, nil
	default:
		hub := feed.NewHub(feed.WithHubLogger(log))
		a.onClose(func() { _ = hub.Close() })
		return hub, nil
	}
}

func buildAuditStore(ctx context.Context, cfg config.Server, log *slog.Logger, a *app) (audit.Store, error) {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return audit.NewLogStore(log.With("component", "audit")), nil
	}
	client, err := kafka.NewProducer(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
	if err != nil {
		return nil, err
	}
	sink := audit.NewKafkaStore(client, cfg.Audit.KafkaTopic)
	a.onClose(func() { _ = sink.Close(context.Background()) })
	return sink, nil
}

func buildLookup(cfg config.ProvenanceConfig, log *slog.Logger) provenance.Lookup {
	remote := func() provenance.Lookup {
		return provenance.NewRemoteLookup(cfg.RemoteURL,
			provenance.WithBreaker(circuit.New("provenance")),
			provenance.WithLogger(log),
		)
	}
	switch cfg.Mode {
	case config.ProvenanceRemote:
		return remote()
	case config.ProvenanceChain:
		return provenance.Chain{provenance.RequestLookup{}, remote()}
	default:
		return provenance.RequestLookup{}
	}
}
