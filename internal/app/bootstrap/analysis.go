package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/requirements-analyzer/internal/analysis"
	"github.com/wolfman30/requirements-analyzer/internal/archive"
	appconfig "github.com/wolfman30/requirements-analyzer/internal/config"
	"github.com/wolfman30/requirements-analyzer/internal/history"
	"github.com/wolfman30/requirements-analyzer/internal/intake"
	"github.com/wolfman30/requirements-analyzer/internal/notify"
	"github.com/wolfman30/requirements-analyzer/internal/records"
	"github.com/wolfman30/requirements-analyzer/pkg/logging"
)

// Backends are the optional clients records can be written to. Any field may
// be nil.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	S3       archive.S3API
	SES      *sesv2.Client
}

// Sinks holds the record sinks built from config. Nil fields are disabled.
type Sinks struct {
	Records *records.Repository
	History *history.Store
	Archive *archive.Store
	Alerts  *notify.UrgentAlerter
}

// ServiceOptions registers every enabled sink. Typed nils are skipped so the
// service never calls into a disabled backend.
func (s Sinks) ServiceOptions() []intake.ServiceOption {
	var opts []intake.ServiceOption
	if s.Records != nil {
		opts = append(opts, intake.WithSink("postgres", s.Records))
	}
	if s.History != nil {
		opts = append(opts, intake.WithSink("redis_history", s.History))
	}
	if s.Archive.Enabled() {
		opts = append(opts, intake.WithSink("s3_archive", s.Archive))
	}
	if s.Alerts != nil {
		opts = append(opts, intake.WithSink("urgent_alert", s.Alerts))
	}
	return opts
}

// Enabled lists sink names for startup logs.
func (s Sinks) Enabled() []string {
	var names []string
	if s.Records != nil {
		names = append(names, "postgres")
	}
	if s.History != nil {
		names = append(names, "redis_history")
	}
	if s.Archive.Enabled() {
		names = append(names, "s3_archive")
	}
	if s.Alerts != nil {
		names = append(names, "urgent_alert")
	}
	return names
}

// BuildPipeline wires the analysis pipeline with the configured redaction mode.
// observer may be nil.
func BuildPipeline(cfg *appconfig.Config, observer analysis.Observer, logger *logging.Logger) *analysis.Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []analysis.Option{analysis.WithLogger(logger)}
	if cfg != nil {
		opts = append(opts, analysis.WithRedaction(analysis.ParseRedactionMode(cfg.InputRedaction)))
	}
	if observer != nil {
		opts = append(opts, analysis.WithObserver(observer))
	}
	return analysis.NewPipeline(analysis.NewRecorder(), opts...)
}

// BuildSinks turns config and available backends into record sinks.
func BuildSinks(cfg *appconfig.Config, b Backends, logger *logging.Logger) Sinks {
	if logger == nil {
		logger = logging.Default()
	}
	var sinks Sinks
	if cfg == nil {
		return sinks
	}
	if b.Postgres != nil {
		sinks.Records = records.NewRepository(b.Postgres)
	}
	if b.Redis != nil {
		sinks.History = history.NewStore(b.Redis, cfg.HistoryLimit, cfg.HistoryTTL)
	}
	if cfg.ArchiveBucket != "" && b.S3 != nil {
		sinks.Archive = archive.NewStore(b.S3, cfg.ArchiveBucket, logger)
	}
	if cfg.UrgentAlertEmail != "" {
		emailCfg := notify.Config{
			Provider:       cfg.EmailProvider,
			SendGridAPIKey: cfg.SendGridAPIKey,
			FromEmail:      cfg.EmailFrom,
			FromName:       cfg.EmailFromName,
		}
		var sender notify.EmailSender
		if b.SES != nil {
			sender = notify.NewEmailSender(emailCfg, b.SES, logger)
		} else {
			sender = notify.NewEmailSender(emailCfg, nil, logger)
		}
		sinks.Alerts = notify.NewUrgentAlerter(sender, cfg.UrgentAlertEmail, logger)
	}
	return sinks
}
