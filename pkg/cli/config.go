package cli

import (
	"context"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/smartshelf/pkg/adapter"
	"github.com/m-mizutani/smartshelf/pkg/audit"
	"github.com/m-mizutani/smartshelf/pkg/model"
	"github.com/m-mizutani/smartshelf/pkg/repository"
	"github.com/m-mizutani/smartshelf/pkg/usecase/inventory"
	"github.com/m-mizutani/smartshelf/pkg/usecase/shelf"
	"github.com/m-mizutani/smartshelf/pkg/utils/logging"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

const (
	backendSQLite    = "sqlite"
	backendFirestore = "firestore"
	backendRedis     = "redis"
)

// config holds configuration values
type config struct {
	// Repository
	backend       string
	dataDir       string
	spotDB        string
	sessionDB     string
	project       string
	database      string
	redisAddr     string
	redisPassword string
	redisDB       int64
	redisPrefix   string

	// Inventory
	layout string

	// Engine
	sessionID string

	// Audit
	auditDataset string
	auditTable   string

	// Adapters
	geminiProject  string
	geminiLocation string
	geminiAPIKey   string
	geminiModel    string
}

// globalFlags returns repository and engine flags with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Storage backend (sqlite, firestore, redis)",
			Value:       backendSQLite,
			Sources:     cli.EnvVars("SMARTSHELF_BACKEND"),
			Destination: &cfg.backend,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory of the SQLite database files",
			Value:       ".",
			Sources:     cli.EnvVars("SMARTSHELF_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "spot-db",
			Usage:       "SQLite file of the spot inventory, relative to data-dir",
			Value:       "smart_shelf_storage.db",
			Sources:     cli.EnvVars("SMARTSHELF_SPOT_DB"),
			Destination: &cfg.spotDB,
		},
		&cli.StringFlag{
			Name:        "session-db",
			Usage:       "SQLite file of conversation sessions, relative to data-dir",
			Value:       "smart_shelf_sessions.db",
			Sources:     cli.EnvVars("SMARTSHELF_SESSION_DB"),
			Destination: &cfg.sessionDB,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("SMARTSHELF_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("SMARTSHELF_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Sources:     cli.EnvVars("SMARTSHELF_REDIS_DB"),
			Destination: &cfg.redisDB,
		},
		&cli.StringFlag{
			Name:        "redis-prefix",
			Usage:       "Key prefix of every Redis key",
			Value:       "smartshelf",
			Sources:     cli.EnvVars("SMARTSHELF_REDIS_PREFIX"),
			Destination: &cfg.redisPrefix,
		},
		&cli.StringFlag{
			Name:        "layout",
			Aliases:     []string{"l"},
			Usage:       "Storage layout descriptor (local path or gs://bucket/object)",
			Value:       "smart_shelf_config.json",
			Sources:     cli.EnvVars("SMARTSHELF_LAYOUT"),
			Destination: &cfg.layout,
		},
		&cli.StringFlag{
			Name:        "session-id",
			Usage:       "Conversation ID the desk works on",
			Value:       string(model.DefaultSessionID),
			Sources:     cli.EnvVars("SMARTSHELF_SESSION_ID"),
			Destination: &cfg.sessionID,
		},
		&cli.StringFlag{
			Name:        "audit-dataset",
			Usage:       "BigQuery dataset for the audit trail (disabled when empty)",
			Sources:     cli.EnvVars("SMARTSHELF_AUDIT_DATASET"),
			Destination: &cfg.auditDataset,
		},
		&cli.StringFlag{
			Name:        "audit-table",
			Usage:       "BigQuery table for the audit trail",
			Value:       "shelf_audit",
			Sources:     cli.EnvVars("SMARTSHELF_AUDIT_TABLE"),
			Destination: &cfg.auditTable,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini on Vertex AI",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key, used instead of Vertex AI when set",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// stores bundles both repositories and releases them together
type stores struct {
	spots    repository.SpotRepository
	sessions repository.SessionRepository
	closers  []func() error
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logging.Default().Warn("failed to close repository", "error", err)
		}
	}
}

// newStores opens the spot and session repositories of the configured backend
func (cfg *config) newStores(ctx context.Context) (*stores, error) {
	switch cfg.backend {
	case backendSQLite:
		spotPath := filepath.Join(cfg.dataDir, cfg.spotDB)
		sessionPath := filepath.Join(cfg.dataDir, cfg.sessionDB)

		spots, err := repository.NewSQLite(spotPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open spot database")
		}
		if sessionPath == spotPath {
			return &stores{spots: spots, sessions: spots, closers: []func() error{spots.Close}}, nil
		}

		sessions, err := repository.NewSQLite(sessionPath)
		if err != nil {
			_ = spots.Close()
			return nil, goerr.Wrap(err, "failed to open session database")
		}
		return &stores{spots: spots, sessions: sessions, closers: []func() error{spots.Close, sessions.Close}}, nil

	case backendFirestore:
		if cfg.project == "" {
			return nil, goerr.New("project is required")
		}
		if cfg.database == "" {
			return nil, goerr.New("database is required")
		}
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return &stores{spots: repo, sessions: repo, closers: []func() error{repo.Close}}, nil

	case backendRedis:
		repo, err := repository.NewRedis(ctx, &redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       int(cfg.redisDB),
		}, cfg.redisPrefix)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create repository")
		}
		return &stores{spots: repo, sessions: repo, closers: []func() error{repo.Close}}, nil
	}

	return nil, goerr.New("unknown backend", goerr.V("backend", cfg.backend))
}

// newAuditSinks always logs events and also streams them to BigQuery when a
// dataset is configured. The BigQuery sink is nil otherwise.
func (cfg *config) newAuditSinks(ctx context.Context) (audit.Multi, *audit.BigQuery, error) {
	sinks := audit.Multi{audit.NewLogger()}
	if cfg.auditDataset == "" {
		return sinks, nil, nil
	}
	if cfg.project == "" {
		return nil, nil, goerr.New("project is required for BigQuery audit")
	}

	client, err := adapter.NewBigQuery(ctx, cfg.project)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create BigQuery client")
	}
	bq := audit.NewBigQuery(client, cfg.auditDataset, cfg.auditTable)
	if err := bq.Setup(ctx); err != nil {
		return nil, nil, goerr.Wrap(err, "failed to set up audit table")
	}

	return append(sinks, bq), bq, nil
}

// newInventory creates the inventory usecase, with Cloud Storage access only
// when the layout lives in a bucket
func (cfg *config) newInventory(ctx context.Context, spots repository.SpotRepository) (*inventory.UseCase, error) {
	var opts []inventory.Option
	if _, _, ok := adapter.ParseGCSURL(cfg.layout); ok {
		storage, err := adapter.NewStorage(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create storage")
		}
		opts = append(opts, inventory.WithStorage(storage))
	}
	return inventory.New(spots, opts...), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	opts := []adapter.GeminiOption{adapter.WithGenerativeModel(cfg.geminiModel)}

	if cfg.geminiAPIKey != "" {
		client, err := adapter.NewGeminiWithAPIKey(ctx, cfg.geminiAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil
	}

	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project or gemini-api-key is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	return client, nil
}

// app is everything a desk command needs, ready after the inventory bootstrap
type app struct {
	stores    *stores
	engine    *shelf.UseCase
	inventory *inventory.UseCase
	auditLog  *audit.BigQuery
}

func (a *app) Close() {
	a.stores.Close()
}

// newApp opens the stores, loads the layout and builds the engine
func (cfg *config) newApp(ctx context.Context) (*app, error) {
	st, err := cfg.newStores(ctx)
	if err != nil {
		return nil, err
	}

	inv, err := cfg.newInventory(ctx, st.spots)
	if err != nil {
		st.Close()
		return nil, err
	}
	if _, err := inv.Bootstrap(ctx, cfg.layout); err != nil {
		st.Close()
		return nil, goerr.Wrap(err, "failed to bootstrap inventory")
	}

	sinks, auditLog, err := cfg.newAuditSinks(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	engine := shelf.New(st.spots, st.sessions,
		shelf.WithSessionID(model.SessionID(cfg.sessionID)),
		shelf.WithAuditSink(sinks),
	)

	return &app{stores: st, engine: engine, inventory: inv, auditLog: auditLog}, nil
}
