package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/domain/mapping"
	"github.com/211-Connect/silobuster-resources/modules/directory/infrastructure/persistence"
	"github.com/211-Connect/silobuster-resources/modules/directory/infrastructure/quarantine"
	"github.com/211-Connect/silobuster-resources/modules/directory/infrastructure/sources"
	"github.com/211-Connect/silobuster-resources/modules/directory/services"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
	"github.com/211-Connect/silobuster-resources/pkg/configuration"
	"github.com/211-Connect/silobuster-resources/pkg/metrics"
	"github.com/211-Connect/silobuster-resources/pkg/retry"
	"github.com/211-Connect/silobuster-resources/pkg/runlock"
	"github.com/211-Connect/silobuster-resources/pkg/tracing"
)

type runOptions struct {
	tenant       string
	mappingPath  string
	dryRun       bool
	planOut      string
	failOnErrors bool
}

type runOutput struct {
	Status  string            `json:"status"`
	Invalid int               `json:"invalid"`
	Summary *services.Summary `json:"summary"`
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := configuration.New(envFiles)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("load configuration: %w", err))
			}
			defer conf.Unload()
			return runSync(cmd.Context(), conf, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "Tenant UUID (defaults to DIRECTORY_TENANT_ID)")
	cmd.Flags().StringVar(&opts.mappingPath, "mapping", "", "Mapping override file (defaults to MAPPING_PATH)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Plan writes without applying them")
	cmd.Flags().StringVar(&opts.planOut, "plan-out", "", "Write the planned operations as JSON to this path")
	cmd.Flags().BoolVar(&opts.failOnErrors, "fail-on-errors", false, "Exit non-zero when any entity type reported errors")
	return cmd
}

func resolveTenant(flag, fallback string) (uuid.UUID, error) {
	raw := firstNonEmpty(flag, fallback)
	if raw == "" {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("--tenant or DIRECTORY_TENANT_ID is required"))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --tenant: %w", err))
	}
	return id, nil
}

func loadMapper(path string, tenantID uuid.UUID) (*mapping.Mapper, error) {
	mapper, err := mapping.Load(path, entity.Default())
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	if tid := mapper.TenantID(); tid != "" && tid != tenantID.String() {
		return nil, withCode(exitValidation, fmt.Errorf("mapping %s belongs to tenant %s, not %s", path, tid, tenantID))
	}
	return mapper, nil
}

func runSync(ctx context.Context, conf *configuration.Configuration, opts runOptions, out io.Writer) error {
	tenantID, err := resolveTenant(opts.tenant, conf.Sync.TenantID)
	if err != nil {
		return err
	}
	mapper, err := loadMapper(firstNonEmpty(opts.mappingPath, conf.Sync.MappingPath), tenantID)
	if err != nil {
		return err
	}
	if err := conf.Warehouse.Validate(); err != nil {
		return withCode(exitUsage, err)
	}
	format, err := quarantine.ParseFormat(conf.Quarantine.Format)
	if err != nil {
		return withCode(exitUsage, err)
	}

	logger := logrus.NewEntry(conf.Logger()).WithFields(logrus.Fields{
		"command":   "run",
		"tenant_id": tenantID.String(),
	})

	shutdown, err := tracing.Setup(ctx, conf.OpenTelemetry.Enabled, conf.OpenTelemetry.TempoURL, conf.OpenTelemetry.ServiceName)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	pool, err := connectDB(ctx, conf.Database.Opts)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	locker, closeLocker := newLocker(conf.RunLock, pool)
	defer closeLocker()
	release, err := locker.Acquire(ctx, runlock.Key(tenantID.String()))
	if errors.Is(err, runlock.ErrLocked) {
		return withCode(exitLocked, fmt.Errorf("another run holds the lock for tenant %s", tenantID))
	}
	if err != nil {
		return withCode(exitDB, err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			logger.WithError(err).Warn("run lock release failed")
		}
	}()

	relational, err := sources.OpenRelational(ctx, conf.RelationalDSN())
	if err != nil {
		return withCode(exitDB, err)
	}
	defer func() { _ = relational.Close() }()

	warehouse, err := sources.NewWarehouse(ctx, sources.WarehouseConfig{
		Project:         conf.Warehouse.Project,
		Dataset:         conf.Warehouse.Dataset,
		CredentialsFile: conf.Warehouse.CredentialsFile,
		Location:        conf.Warehouse.Location,
	})
	if err != nil {
		return withCode(exitDB, err)
	}
	defer func() { _ = warehouse.Close() }()

	sink, err := newQuarantineWriter(conf, format, tenantID, time.Now().UTC(), logger)
	if err != nil {
		return withCode(exitUsage, err)
	}

	policy := retry.Default()
	policy.Attempts = conf.Sync.FetchAttempts
	policy.MaxBackoff = conf.Sync.FetchMaxBackoff

	engine, err := services.NewEngine(mapper, relational, warehouse, persistence.NewDirectoryRepository(), sink, services.Options{
		TenantID:         tenantID,
		DryRun:           opts.dryRun,
		FetchConcurrency: conf.Sync.FetchConcurrency,
		FetchTimeout:     conf.Sync.FetchTimeout,
		Retry:            policy,
		WriteRPS:         conf.Sync.WriteRPS,
		Logger:           logger,
		Tracer:           tracing.Tracer(),
	})
	if err != nil {
		return withCode(exitUsage, err)
	}

	res, runErr := engine.Run(composables.WithPool(ctx, pool))

	pusher := metrics.NewPusher(conf.Prometheus.PushgatewayURL, conf.Prometheus.Job, nil).
		Grouping("tenant_id", tenantID.String())
	if err := pusher.Push(context.Background()); err != nil {
		logger.WithError(err).Warn("metrics push failed")
	}

	if opts.planOut != "" && res != nil {
		if err := writeJSONFile(opts.planOut, res.Plan.Ops()); err != nil {
			return err
		}
	}
	if err := writeJSONLine(out, newRunOutput(res, runErr)); err != nil {
		return err
	}
	if runErr != nil {
		return withCode(exitDB, fmt.Errorf("run aborted: %w", runErr))
	}
	return outcome(res.Summary, opts.failOnErrors)
}

func newRunOutput(res *services.Result, runErr error) runOutput {
	out := runOutput{Status: "ok"}
	if res != nil {
		out.Summary = res.Summary
		out.Invalid = len(res.Invalid)
		if res.Summary.HasErrors() {
			out.Status = "partial"
		}
	}
	if runErr != nil {
		out.Status = "aborted"
	}
	return out
}

// outcome maps per-type errors to an exit code when the caller asked for it.
// Write failures win over the other kinds.
func outcome(summary *services.Summary, failOnErrors bool) error {
	if !failOnErrors || !summary.HasErrors() {
		return nil
	}
	if n := summary.Errors[services.KindWrite]; n > 0 {
		return withCode(exitDBWrite, fmt.Errorf("run finished with %d write errors", n))
	}
	total := 0
	for _, n := range summary.Errors {
		total += n
	}
	return withCode(exitPartial, fmt.Errorf("run finished with %d errors", total))
}

func connectDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return pool, nil
}

func newLocker(opts configuration.RunLockOptions, pool *pgxpool.Pool) (runlock.Locker, func()) {
	switch opts.Backend {
	case "redis":
		r := runlock.NewRedisFromURL(opts.RedisURL, opts.TTL)
		return r, func() { _ = r.Close() }
	case "none":
		return runlock.Nop{}, func() {}
	default:
		return runlock.NewPostgres(pool), func() {}
	}
}

func newQuarantineWriter(conf *configuration.Configuration, format quarantine.Format, tenantID uuid.UUID, now time.Time, logger *logrus.Entry) (services.QuarantineWriter, error) {
	name := quarantine.FileName(tenantID.String(), now.Format("20060102T150405Z"), format)
	file, err := quarantine.NewFileWriter(format, filepath.Join(conf.Quarantine.Dir, name))
	if err != nil {
		return nil, err
	}
	if conf.Quarantine.Bucket == "" {
		return file, nil
	}
	client, err := quarantine.NewMinioClient(quarantine.ObjectStoreConfig{
		Endpoint:  conf.Minio.Endpoint,
		AccessKey: conf.Minio.AccessKey,
		SecretKey: conf.Minio.SecretKey,
		Region:    conf.Minio.Region,
		UseSSL:    conf.Minio.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return quarantine.NewObjectStoreWriter(file, client, conf.Quarantine.Bucket, tenantID.String(), logger), nil
}
