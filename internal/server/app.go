package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GurgoSoft/MIND-sub001/config"
	"github.com/GurgoSoft/MIND-sub001/internal/audit"
	"github.com/GurgoSoft/MIND-sub001/internal/auth"
	"github.com/GurgoSoft/MIND-sub001/internal/db"
	"github.com/GurgoSoft/MIND-sub001/internal/handlers"
	"github.com/GurgoSoft/MIND-sub001/internal/mail"
	"github.com/GurgoSoft/MIND-sub001/internal/services"
	"github.com/GurgoSoft/MIND-sub001/internal/storage"
	"github.com/GurgoSoft/MIND-sub001/internal/store"
	"github.com/GurgoSoft/MIND-sub001/internal/store/memory"
	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	AuditBackendPostgres = "postgres"
	AuditBackendMongo    = "mongo"
)

// App owns the connections shared by the services running in one process.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	validate *services.Validator

	db     *sqlx.DB
	mem    *memory.Store
	mongo  *mongo.Client
	mailer mail.Mailer
	files  *storage.Attachments

	closers []func() error
	users   *usersDomain
}

// NewApp opens the database (unless the users service runs in memory mode),
// the audit backend, the mail transport and object storage.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger, run []Service) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, validate: services.NewValidator()}

	memoryMode := strings.EqualFold(cfg.StoreBackend, StoreBackendMemory)
	if memoryMode {
		for _, s := range run {
			if s != ServiceUsers {
				return nil, fmt.Errorf("STORE_BACKEND=memory only supports the users service, not %s", s)
			}
		}
		a.mem = memory.New()
		logger.Warn("users service running on the in-memory store; data is lost on exit")
	} else {
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.db = conn
		a.closers = append(a.closers, conn.Close)
	}

	if !memoryMode && strings.EqualFold(cfg.Audit.Backend, AuditBackendMongo) {
		client, err := audit.ConnectMongo(ctx, cfg.Audit.MongoURI)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.mongo = client
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
	}

	mailer, closeMailer, err := mail.New(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.mailer = mailer
	a.closers = append(a.closers, closeMailer)

	files, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.files = files
	return a, nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if a.closers[i] == nil {
			continue
		}
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// AuditStore returns the audit store of domain on the configured backend.
func (a *App) AuditStore(ctx context.Context, domain types.AuditDomain) (audit.Store, error) {
	switch {
	case a.mem != nil:
		return audit.NewMemoryStore(), nil
	case a.mongo != nil:
		return audit.NewMongoStore(ctx, a.mongo, a.cfg.Audit.MongoDatabase, domain)
	default:
		return audit.NewPostgresStore(a.db, domain)
	}
}

func (a *App) recorder(ctx context.Context, domain types.AuditDomain) (*audit.Recorder, *audit.Log, error) {
	st, err := a.AuditStore(ctx, domain)
	if err != nil {
		return nil, nil, err
	}
	recorder := audit.NewRecorder(domain, st, a.logger.Named("audit")).WithSystemActor(a.cfg.Auth.SystemUserID)
	return recorder, audit.NewLog(domain, st), nil
}

func (a *App) lookup(kind types.LookupKind, recorder *audit.Recorder) (*services.LookupService, error) {
	if a.mem != nil {
		return services.NewLookupService(a.mem.Lookup(kind), recorder, a.validate), nil
	}
	repo, err := store.NewLookupRepository(a.db, kind)
	if err != nil {
		return nil, err
	}
	return services.NewLookupService(repo, recorder, a.validate), nil
}

// Auth returns the account service shared by the three HTTP services.
func (a *App) Auth(ctx context.Context) (*services.AuthService, error) {
	d, err := a.usersDomain(ctx)
	if err != nil {
		return nil, err
	}
	return d.deps.Auth, nil
}

// usersDomain holds the users service graph. The agenda and diary services
// reuse its AuthService to authenticate bearer tokens.
type usersDomain struct {
	log  *audit.Log
	deps handlers.UsersDeps
}

func (a *App) usersDomain(ctx context.Context) (*usersDomain, error) {
	if a.users != nil {
		return a.users, nil
	}
	recorder, log, err := a.recorder(ctx, types.AuditDomainUsers)
	if err != nil {
		return nil, err
	}
	userTypes, err := a.lookup(types.LookupUserTypes, recorder)
	if err != nil {
		return nil, err
	}
	statuses, err := a.lookup(types.LookupStatuses, recorder)
	if err != nil {
		return nil, err
	}

	d := &usersDomain{log: log}
	var (
		userRepo   services.UserRepository
		personRepo services.PersonRepository
	)
	if a.mem != nil {
		userRepo, personRepo = a.mem.Users, a.mem.Persons
	} else {
		users := store.NewUserRepository(a.db)
		userRepo, personRepo = users, store.NewPersonRepository(a.db)
		d.deps.PaymentInfos = services.NewPaymentInfoService(store.NewPaymentInfoRepository(a.db), users, recorder, a.validate)
		d.deps.Subscriptions = services.NewSubscriptionService(store.NewSubscriptionRepository(a.db), users, recorder, a.validate)
	}

	d.deps.UserTypes = userTypes
	d.deps.Statuses = statuses
	d.deps.Persons = services.NewPersonService(personRepo, userRepo, recorder, a.validate)
	d.deps.Users = services.NewUserService(userRepo, personRepo, userTypes, statuses, recorder, a.validate, a.logger)
	d.deps.Auth = services.NewAuthService(services.AuthDeps{
		Users:     d.deps.Users,
		Persons:   personRepo,
		UserTypes: userTypes,
		Hasher:    auth.NewHasher(a.cfg.Auth.BcryptCost, a.cfg.Auth.Pepper),
		Tokens:    auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL),
		Mailer:    a.mailer,
		Recorder:  recorder,
		Validator: a.validate,
		Logger:    a.logger.Named("auth"),
		Settings: services.AuthSettings{
			MaxFailed:     a.cfg.Auth.MaxFailed,
			CodeTTL:       a.cfg.Auth.CodeTTL,
			UserTypeCode:  a.cfg.Defaults.UserTypeCode,
			UserTypeName:  a.cfg.Defaults.UserTypeName,
			AdminTypeCode: a.cfg.Auth.AdminUserTypeCode,
			ExposeCode:    !a.cfg.IsProduction(),
		},
	})
	a.users = d
	return d, nil
}

type agendaDomain struct {
	log  *audit.Log
	deps handlers.AgendaDeps
}

func (a *App) agendaDomain(ctx context.Context) (*agendaDomain, error) {
	recorder, log, err := a.recorder(ctx, types.AuditDomainAgenda)
	if err != nil {
		return nil, err
	}
	agendaTypes, err := a.lookup(types.LookupAgendaTypes, recorder)
	if err != nil {
		return nil, err
	}
	diagnosisTypes, err := a.lookup(types.LookupDiagnosisTypes, recorder)
	if err != nil {
		return nil, err
	}

	agendas := services.NewAgendaService(store.NewAgendaRepository(a.db), agendaTypes, recorder, a.validate)
	appointments := services.NewAppointmentService(store.NewAppointmentRepository(a.db), agendas, recorder, a.validate)
	return &agendaDomain{
		log: log,
		deps: handlers.AgendaDeps{
			AgendaTypes:    agendaTypes,
			DiagnosisTypes: diagnosisTypes,
			Agendas:        agendas,
			AgendaDays:     services.NewAgendaDayService(store.NewAgendaDayRepository(a.db), agendas, recorder, a.validate),
			Appointments:   appointments,
			Contents:       services.NewAppointmentContentService(store.NewAppointmentContentRepository(a.db), appointments, recorder, a.validate),
			Diagnoses:      services.NewAppointmentDiagnosisService(store.NewAppointmentDiagnosisRepository(a.db), appointments, diagnosisTypes, recorder, a.validate),
			Records:        services.NewRecordService(store.NewAppointmentRecordRepository(a.db), appointments, a.files, recorder, a.validate),
			FollowUps:      services.NewFollowUpService(store.NewFollowUpRepository(a.db), appointments, recorder, a.validate),
			Notifications: services.NewNotificationService(store.NewNotificationRepository(a.db), store.NewUserRepository(a.db),
				a.mailer, recorder, a.validate, a.logger.Named("notifications")),
		},
	}, nil
}

type diaryDomain struct {
	log  *audit.Log
	deps handlers.DiaryDeps
}

func (a *App) diaryDomain(ctx context.Context) (*diaryDomain, error) {
	recorder, log, err := a.recorder(ctx, types.AuditDomainDiary)
	if err != nil {
		return nil, err
	}
	lookups := make(map[types.DiaryItemKind]*services.LookupService, len(types.DiaryItemKinds))
	for _, kind := range types.DiaryItemKinds {
		svc, err := a.lookup(kind.LookupKind(), recorder)
		if err != nil {
			return nil, err
		}
		lookups[kind] = svc
	}
	return &diaryDomain{
		log: log,
		deps: handlers.DiaryDeps{
			Entries: services.NewDiaryService(store.NewDiaryRepository(a.db), lookups, recorder, a.validate),
			Lookups: lookups,
		},
	}, nil
}
