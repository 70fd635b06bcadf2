package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/riskibarqy/team-reconciler/external/sportapi"
	"github.com/riskibarqy/team-reconciler/internal/config"
	"github.com/riskibarqy/team-reconciler/internal/domain/alias"
	"github.com/riskibarqy/team-reconciler/internal/domain/mapping"
	"github.com/riskibarqy/team-reconciler/internal/infrastructure/aliasfile"
	"github.com/riskibarqy/team-reconciler/internal/infrastructure/repository/file"
	"github.com/riskibarqy/team-reconciler/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/team-reconciler/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/team-reconciler/internal/platform/cache"
	"github.com/riskibarqy/team-reconciler/internal/platform/logging"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

// App holds the wired services behind one reconciler process. Construction
// is eager: a misconfigured store or alias file fails here, not mid-run.
type App struct {
	Config     config.Config
	Logger     *logging.Logger
	Lookup     *sportapi.Directory
	Aliases    alias.Table
	Mappings   mapping.Repository
	AuditLog   mapping.AuditLog
	Normalizer *usecase.Normalizer
	Classifier *usecase.Classifier
	Matcher    *usecase.Matcher
	Reconcile  *usecase.ReconcileService
	Audit      *usecase.AuditService
	Resolve    *usecase.ResolveService

	db *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	aliases := alias.Table{}
	if cfg.AliasFile != "" {
		table, err := aliasfile.Load(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
		aliases = table
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Aliases: aliases,
	}

	if err := app.openStores(cfg); err != nil {
		return nil, err
	}

	scoreline := sportapi.NewScorelineClient(sportapi.ClientConfig{
		HTTPClient:     &http.Client{Timeout: cfg.ScorelineTimeout},
		BaseURL:        cfg.ScorelineBaseURL,
		Token:          cfg.ScorelineToken,
		Timeout:        cfg.ScorelineTimeout,
		MaxRetries:     cfg.ScorelineMaxRetries,
		MinInterval:    cfg.ScorelineMinInterval,
		Logger:         logger,
		CircuitBreaker: cfg.ScorelineCircuit,
	})
	clubdata := sportapi.NewClubdataClient(sportapi.ClientConfig{
		HTTPClient:     &http.Client{Timeout: cfg.ClubdataTimeout},
		BaseURL:        cfg.ClubdataBaseURL,
		Token:          cfg.ClubdataToken,
		Timeout:        cfg.ClubdataTimeout,
		MaxRetries:     cfg.ClubdataMaxRetries,
		MinInterval:    cfg.ClubdataMinInterval,
		Logger:         logger,
		CircuitBreaker: cfg.ClubdataCircuit,
	})
	app.Lookup = sportapi.NewDirectory(scoreline, clubdata)

	app.Normalizer = usecase.NewNormalizer(aliases)
	app.Classifier = usecase.NewClassifier()
	app.Matcher = usecase.NewMatcher(app.Lookup, aliases, app.Normalizer, app.Classifier, app.Mappings, logger)

	app.Reconcile = usecase.NewReconcileService(
		app.Lookup,
		app.Matcher,
		app.Mappings,
		app.Normalizer,
		usecase.ReconcileConfig{
			ProbeRangeByCompetition: cfg.ProbeRangeByCompetition,
			RangeProbeEnabled:       cfg.RangeProbeEnabled,
			MaxRangeProbe:           cfg.MaxRangeProbe,
			MaxWorkers:              cfg.ReconcileMaxWorkers,
		},
		nil,
		logger,
	)
	app.Audit = usecase.NewAuditService(
		app.Lookup,
		app.Mappings,
		app.AuditLog,
		aliases,
		app.Normalizer,
		app.Classifier,
		cfg.AuditMaxWorkers,
		logger,
	)

	var resolveCache *cache.Store
	if cfg.ResolveCacheEnabled {
		resolveCache = cache.NewStore(cfg.ResolveCacheTTL)
	}
	app.Resolve = usecase.NewResolveService(app.Mappings, resolveCache)

	return app, nil
}

func (a *App) openStores(cfg config.Config) error {
	switch cfg.MappingStore {
	case config.StoreMemory:
		a.Mappings = memory.NewMappingRepository(nil)
		a.AuditLog = memory.NewAuditLog()
	case config.StoreFile:
		store, err := file.Open(cfg.MappingFile)
		if err != nil {
			return fmt.Errorf("%w: open mapping file %s: %v", usecase.ErrConfiguration, cfg.MappingFile, err)
		}
		a.Mappings = store
		a.AuditLog = store
	case config.StorePostgres:
		db, err := sqlx.Connect("postgres", cfg.DBURL)
		if err != nil {
			return fmt.Errorf("%w: connect to postgres: %v", usecase.ErrConfiguration, err)
		}
		a.db = db
		a.Mappings = postgres.NewMappingRepository(db)
		a.AuditLog = postgres.NewAuditLogRepository(db)
	default:
		return fmt.Errorf("%w: unknown mapping store %q", usecase.ErrConfiguration, cfg.MappingStore)
	}

	return nil
}

// Close releases store handles. Safe to call on a partially built app.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
