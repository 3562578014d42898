package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"dirsync/internal/bootstrap/config"
	"dirsync/internal/bootstrap/database"
	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/errs"
	"dirsync/internal/infrastructure/directory"
	"dirsync/internal/infrastructure/notify"
	sqlrepo "dirsync/internal/infrastructure/persistence/sqlstore/repository"
	sqluow "dirsync/internal/infrastructure/persistence/sqlstore/uow"
	"dirsync/internal/ports"
	"dirsync/internal/usecase/reconcile"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideSnapshotStore),
	fx.Provide(
		fx.Annotate(
			sqlrepo.NewChangeRepository,
			fx.As(new(ports.ChangeLedger)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqluow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			NewMetadataOpener,
			fx.As(new(ports.MetadataStoreOpener)),
		),
	),
	fx.Provide(provideDirectorySource),
	fx.Provide(provideNotifier),
	fx.Provide(provideReconcileOptions),
	fx.Provide(reconcile.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return database.Close(db)
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideSnapshotStore(db *gorm.DB, cfg config.Config) ports.SnapshotStore {
	return sqlrepo.NewSnapshotRepository(db, sqlrepo.SnapshotOptions{
		Retain:    cfg.Snapshot.Retain,
		BatchSize: cfg.Snapshot.BatchSize,
	})
}

func provideDirectorySource(cfg config.Config) (ports.DirectorySource, error) {
	switch strings.ToLower(cfg.Directory.Source) {
	case "file":
		return directory.NewFileSource(cfg.Directory.File.Path)
	case "ldap":
		ldapCfg := cfg.Directory.LDAP
		return directory.NewLDAPSource(directory.LDAPOptions{
			URL:                ldapCfg.URL,
			BindDN:             ldapCfg.BindDN,
			BindPassword:       ldapCfg.BindPassword,
			BaseDN:             ldapCfg.BaseDN,
			Filter:             ldapCfg.Filter,
			PageSize:           ldapCfg.PageSize,
			StartTLS:           ldapCfg.StartTLS,
			InsecureSkipVerify: ldapCfg.InsecureSkipVerify,
			Timeout:            ldapCfg.Timeout,
			Attributes: directory.LDAPAttributes{
				ID:          ldapCfg.Attributes.ID,
				Username:    ldapCfg.Attributes.Username,
				Email:       ldapCfg.Attributes.Email,
				DisplayName: ldapCfg.Attributes.DisplayName,
				Company:     ldapCfg.Attributes.Company,
				Department:  ldapCfg.Attributes.Department,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported directory source %q", cfg.Directory.Source)
	}
}

// provideNotifier never fails the application: an unreachable broker only
// disables notifications for this process.
func provideNotifier(lc fx.Lifecycle, ctx context.Context, cfg config.Config) ports.ChangeNotifier {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	natsCfg := cfg.Notify.NATS
	if strings.TrimSpace(natsCfg.URL) == "" {
		return notify.Noop{}
	}

	notifier, err := notify.NewNATSNotifier(logCtx, notify.NATSOptions{
		URL:     natsCfg.URL,
		Subject: natsCfg.Subject,
		Name:    natsCfg.Name,
		Timeout: natsCfg.Timeout,
	})
	if err != nil {
		logging.Warn(logCtx, "nats unavailable, change notifications disabled", slog.Any("err", errs.Loggable(err)))
		return notify.Noop{}
	}

	lc.Append(fx.Hook{
		OnStop: notifier.Close,
	})
	return notifier
}

func provideReconcileOptions(cfg config.Config) reconcile.Options {
	return reconcile.Options{
		LinkNames: identity.LinkNames{
			StableID: cfg.Metadata.Names.StableID,
			Username: cfg.Metadata.Names.Username,
			Email:    cfg.Metadata.Names.Email,
		},
		FailOnRowErrors: cfg.Reconcile.FailOnRowErrors,
	}
}
