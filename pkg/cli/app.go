package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/adapters/toolinfo"
	"github.com/ekaya-inc/ekaya-sanity/pkg/config"
	"github.com/ekaya-inc/ekaya-sanity/pkg/database"
	"github.com/ekaya-inc/ekaya-sanity/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sanity/pkg/services"
	"github.com/ekaya-inc/ekaya-sanity/pkg/workerpool"
)

var errPersistenceDisabled = errors.New("no report database configured: set DATABASE_URL or PGHOST")

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) workerPool() *workerpool.Pool {
	return workerpool.New(workerpool.Config{MaxConcurrent: a.cfg.Data.Workers}, a.logger)
}

func (a *app) sanityRunner(pool *workerpool.Pool) services.SanityRunner {
	layout := services.BundleLayout{
		DataDir:           a.cfg.Data.DataDir,
		EnumsFile:         a.cfg.Data.EnumsFile,
		RelationshipsFile: a.cfg.Data.RelationshipsFile,
	}
	return services.NewSanityRunner(layout, pool, a.logger)
}

func (a *app) apiReconciler(pool *workerpool.Pool) (services.APIReconciler, error) {
	loader, err := a.toolInfoLoader()
	if err != nil {
		return nil, err
	}
	reconcilerConfig := services.APIReconcilerConfig{
		InterfaceDirs: a.cfg.API.InterfaceDirs,
		IgnoredFiles:  a.cfg.API.IgnoredFiles,
		YAMLFilename:  a.cfg.API.YAMLFilename,
	}
	return services.NewAPIReconciler(reconcilerConfig, loader, pool, a.logger), nil
}

// toolInfoLoader builds the configured introspection loader behind a cache.
func (a *app) toolInfoLoader() (toolinfo.Loader, error) {
	var loader toolinfo.Loader
	switch a.cfg.API.Introspection {
	case config.IntrospectionLiteral:
		loader = toolinfo.NewLiteralLoader(a.logger)
	default:
		loader = toolinfo.NewPythonLoader(toolinfo.PythonConfig{
			Binary:           a.cfg.API.PythonBinary,
			Timeout:          a.cfg.API.Timeout,
			MockedAttributes: a.cfg.API.MockedAttributes,
		}, a.logger)
	}
	if a.cfg.API.CacheSize == 0 {
		return loader, nil
	}

	cache, err := toolinfo.NewCache(a.cfg.API.CacheSize)
	if err != nil {
		return nil, err
	}
	return toolinfo.NewCachedLoader(loader, cache, a.logger), nil
}

// openDB connects to the report database. Callers must Close the result.
func (a *app) openDB(ctx context.Context) (*database.DB, error) {
	if !a.cfg.Database.Enabled() {
		return nil, errPersistenceDisabled
	}
	return database.NewConnection(ctx, &database.Config{
		URL:            a.cfg.Database.ConnectionString(),
		MaxConnections: a.cfg.Database.MaxConnections,
	}, a.logger)
}

// reportService opens the database and returns a service over it along with
// the function releasing the connection.
func (a *app) reportService(ctx context.Context) (services.ReportService, func(), error) {
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := services.NewReportService(repositories.NewReportRepository(db), a.logger)
	return svc, db.Close, nil
}

// migrate applies the embedded migrations over a database/sql handle.
func (a *app) migrate() error {
	if !a.cfg.Database.Enabled() {
		return errPersistenceDisabled
	}
	sqlDB, err := database.OpenSQL(a.cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, a.logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
