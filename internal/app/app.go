// Package app assembles the rule engines, services and HTTP router from
// configuration. cmd/api runs it over PostgreSQL; the API tests run it
// over the in-memory store.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/nursing-api/internal/config"
	auditHandler "github.com/jwalitptl/nursing-api/internal/handler/audit"
	"github.com/jwalitptl/nursing-api/internal/handler/health"
	medicationHandler "github.com/jwalitptl/nursing-api/internal/handler/medication"
	noteHandler "github.com/jwalitptl/nursing-api/internal/handler/note"
	patientHandler "github.com/jwalitptl/nursing-api/internal/handler/patient"
	promHandler "github.com/jwalitptl/nursing-api/internal/handler/prometheus"
	vitalsHandler "github.com/jwalitptl/nursing-api/internal/handler/vitals"
	"github.com/jwalitptl/nursing-api/internal/middleware"
	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/repository/memory"
	"github.com/jwalitptl/nursing-api/internal/repository/postgres"
	"github.com/jwalitptl/nursing-api/internal/router"
	"github.com/jwalitptl/nursing-api/internal/rules/allergy"
	"github.com/jwalitptl/nursing-api/internal/rules/notes"
	"github.com/jwalitptl/nursing-api/internal/rules/visibility"
	"github.com/jwalitptl/nursing-api/internal/rules/vitals"
	auditService "github.com/jwalitptl/nursing-api/internal/service/audit"
	eventService "github.com/jwalitptl/nursing-api/internal/service/event"
	medicationService "github.com/jwalitptl/nursing-api/internal/service/medication"
	noteService "github.com/jwalitptl/nursing-api/internal/service/note"
	patientService "github.com/jwalitptl/nursing-api/internal/service/patient"
	vitalsService "github.com/jwalitptl/nursing-api/internal/service/vitals"
	"github.com/jwalitptl/nursing-api/pkg/auth"
	"github.com/jwalitptl/nursing-api/pkg/clock"
	"github.com/jwalitptl/nursing-api/pkg/logger"
	"github.com/jwalitptl/nursing-api/pkg/metrics"
)

type Repositories struct {
	Patients    repository.PatientRepository
	Caregivers  repository.CaregiverRepository
	Transfers   repository.TransferRepository
	Vitals      repository.VitalsRepository
	Notes       repository.NoteRepository
	Medications repository.MedicationRepository
	Alerts      repository.AllergyAlertRepository
	Audit       repository.AuditRepository
	Outbox      repository.OutboxRepository
}

func PostgresRepositories(db *sqlx.DB) Repositories {
	base := postgres.NewBaseRepository(db)
	return Repositories{
		Patients:    postgres.NewPatientRepository(db),
		Caregivers:  postgres.NewCaregiverRepository(db),
		Transfers:   postgres.NewTransferRepository(db),
		Vitals:      postgres.NewVitalsRepository(db),
		Notes:       postgres.NewNoteRepository(base),
		Medications: postgres.NewMedicationRepository(base),
		Alerts:      postgres.NewAllergyAlertRepository(db),
		Audit:       postgres.NewAuditRepository(base),
		Outbox:      postgres.NewOutboxRepository(base),
	}
}

func MemoryRepositories(s *memory.Store) Repositories {
	return Repositories{
		Patients:    s.Patients(),
		Caregivers:  s.Caregivers(),
		Transfers:   s.Transfers(),
		Vitals:      s.Vitals(),
		Notes:       s.Notes(),
		Medications: s.Medications(),
		Alerts:      s.Alerts(),
		Audit:       s.Audit(),
		Outbox:      s.Outbox(),
	}
}

type Options struct {
	Config  *config.Config
	Repos   Repositories
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	// Clock defaults to the wall clock in the configured shift time zone.
	Clock clock.Clock
	// Pingers back the readiness probe.
	Pingers map[string]health.Pinger
	// Gatherer serves /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
}

type App struct {
	Router *router.Router
	JWT    auth.JWTService
}

// Engines are the configured rule engines.
type Engines struct {
	Matcher     *allergy.Matcher
	Policy      allergy.Policy
	Classifier  *vitals.Classifier
	Partitioner *visibility.Partitioner
	Guard       *notes.Guard
}

// BuildEngines reads the rule settings. A configured drug tables file
// replaces the embedded tables.
func BuildEngines(rules config.RulesConfig) (Engines, error) {
	tables := allergy.DefaultTables()
	if rules.DrugTablesFile != "" {
		f, err := os.Open(rules.DrugTablesFile)
		if err != nil {
			return Engines{}, fmt.Errorf("open drug tables: %w", err)
		}
		defer f.Close()
		if tables, err = allergy.LoadTables(f); err != nil {
			return Engines{}, err
		}
	}

	policy, err := visibility.ParseOffShiftPolicy(rules.OffShiftPolicy)
	if err != nil {
		return Engines{}, err
	}

	overrideRoles := lo.Map(rules.OverrideRoles, func(r string, _ int) model.Role { return model.Role(r) })
	for _, r := range overrideRoles {
		if !r.Valid() {
			return Engines{}, fmt.Errorf("unknown override role %q", r)
		}
	}

	return Engines{
		Matcher:     allergy.NewMatcher(tables),
		Policy:      allergy.Policy{OverrideRoles: overrideRoles},
		Classifier:  vitals.Default(),
		Partitioner: visibility.NewPartitioner(visibility.DefaultSchedule(), policy),
		Guard:       notes.NewGuard(),
	}, nil
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New("nursing")
	}
	clk := opts.Clock
	if clk == nil {
		loc, err := cfg.ShiftLocation()
		if err != nil {
			return nil, fmt.Errorf("shift timezone: %w", err)
		}
		clk = clock.In(clock.Real(), loc)
	}

	engines, err := BuildEngines(cfg.Rules)
	if err != nil {
		return nil, err
	}

	repos := opts.Repos
	auditSvc := auditService.NewService(repos.Audit, clk)
	auditor := auditService.NewAuditLogger(auditSvc, log)
	events := eventService.NewService(repos.Outbox, clk, log)

	patientSvc := patientService.NewService(patientService.Deps{
		Patients:     repos.Patients,
		Caregivers:   repos.Caregivers,
		Transfers:    repos.Transfers,
		Partitioner:  engines.Partitioner,
		CaregiverTTL: cfg.Rules.CaregiverTTL,
		Auditor:      auditor,
		Events:       events,
		Clock:        clk,
		Logger:       log,
		Metrics:      m,
	})
	medicationSvc := medicationService.NewService(medicationService.Deps{
		Patients: repos.Patients,
		Meds:     repos.Medications,
		Alerts:   repos.Alerts,
		Matcher:  engines.Matcher,
		Policy:   engines.Policy,
		Auditor:  auditor,
		Events:   events,
		Clock:    clk,
		Logger:   log,
		Metrics:  m,
	})
	vitalsSvc := vitalsService.NewService(repos.Patients, repos.Vitals, engines.Classifier, auditor, events, clk, log, m)
	noteSvc := noteService.NewService(repos.Notes, repos.Patients, engines.Guard, auditor, events, clk, log, m)

	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)

	routerConfig := router.RouterConfig{
		Timeout: cfg.Server.WriteTimeout,
		Release: cfg.Log.Level != "debug",
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc),
		middleware.NewAuditMiddleware(auditor),
		router.Handlers{
			Health:  health.NewHandler(opts.Pingers),
			Metrics: promHandler.New(opts.Gatherer),
			Protected: []router.Handler{
				patientHandler.NewHandler(patientSvc),
				medicationHandler.NewHandler(medicationSvc),
				vitalsHandler.NewHandler(vitalsSvc),
				noteHandler.NewHandler(noteSvc),
			},
			Admin: []router.Handler{
				auditHandler.NewHandler(auditSvc),
			},
		},
		log,
		m,
		routerConfig,
	)
	r.Setup()

	return &App{Router: r, JWT: jwtSvc}, nil
}
