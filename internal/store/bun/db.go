// Package bun implements the store repositories on SQLite through the bun
// query builder.
package bun

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/migasfree/migasfree-backend/internal/logger"
	"github.com/migasfree/migasfree-backend/internal/store"
)

// DB wraps the bun connection and exposes the repository bundle.
type DB struct {
	db  *bun.DB
	log logger.Logger
}

// New opens (or creates) the SQLite database at path, bootstraps the
// schema and builds the repositories.
func New(path string, log logger.Logger) (*DB, *store.Repositories, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under the request-per-sync load pattern.
	sqldb.SetMaxOpenConns(1)

	db := &DB{
		db:  bun.NewDB(sqldb, sqlitedialect.New()),
		log: log,
	}

	if err := db.migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	if err := db.seed(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("seed database: %w", err)
	}

	repos := &store.Repositories{
		Platforms:        &platformRepo{db: db.db},
		Projects:         &projectRepo{db: db.db},
		Computers:        &computerRepo{db: db.db},
		Users:            &userRepo{db: db.db},
		Properties:       &propertyRepo{db: db.db},
		Attributes:       &attributeRepo{db: db.db},
		AttributeSets:    &attributeSetRepo{db: db.db},
		Domains:          &domainRepo{db: db.db},
		Deployments:      &deploymentRepo{db: db.db},
		FaultDefinitions: &faultDefinitionRepo{db: db.db},
		Policies:         &policyRepo{db: db.db},
		Devices:          &logicalDeviceRepo{db: db.db},
		Events:           &eventRepo{db: db.db},
	}

	log.Info("sqlite store initialized", logger.String("path", path))
	return db, repos, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the connection; the admission controller uses the observed
// latency as a saturation signal.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	models := []any{
		(*Platform)(nil),
		(*Project)(nil),
		(*Computer)(nil),
		(*User)(nil),
		(*Property)(nil),
		(*Attribute)(nil),
		(*AttributeSet)(nil),
		(*Domain)(nil),
		(*Schedule)(nil),
		(*ScheduleDelay)(nil),
		(*Deployment)(nil),
		(*FaultDefinition)(nil),
		(*Policy)(nil),
		(*PolicyGroup)(nil),
		(*LogicalDevice)(nil),
		(*ErrorEvent)(nil),
		(*Fault)(nil),
		(*Migration)(nil),
		(*StatusLog)(nil),
		(*Synchronization)(nil),
		(*PackageHistory)(nil),
	}

	for _, model := range models {
		if _, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_attributes_prefix_value ON attributes(prefix, value)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_properties_prefix ON properties(prefix)",
		"CREATE INDEX IF NOT EXISTS idx_computers_name ON computers(name)",
		"CREATE INDEX IF NOT EXISTS idx_deployments_project_id ON deployments(project_id)",
		"CREATE INDEX IF NOT EXISTS idx_schedule_delays_schedule_id ON schedule_delays(schedule_id)",
		"CREATE INDEX IF NOT EXISTS idx_policy_groups_policy_id ON policy_groups(policy_id)",
		"CREATE INDEX IF NOT EXISTS idx_errors_computer_id ON errors(computer_id)",
		"CREATE INDEX IF NOT EXISTS idx_faults_computer_id ON faults(computer_id)",
		"CREATE INDEX IF NOT EXISTS idx_package_history_computer_id ON package_history(computer_id)",
	}
	for _, idx := range indexes {
		if _, err := d.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// seed guarantees the well-known infrastructure rows: the SET property and
// the all-systems attribute with ID 1.
func (d *DB) seed(ctx context.Context) error {
	count, err := d.db.NewSelect().Model((*Attribute)(nil)).Where("id = 1").Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	prop := &Property{Prefix: "SET", Name: "Attribute Sets", Enabled: true, Sort: "basic", Kind: "N"}
	if _, err := d.db.NewInsert().Model(prop).Exec(ctx); err != nil {
		return err
	}

	all := &Attribute{ID: 1, PropertyID: prop.ID, Prefix: "SET", Value: "ALL SYSTEMS"}
	if _, err := d.db.NewInsert().Model(all).Exec(ctx); err != nil {
		return err
	}

	d.log.Info("seeded all-systems attribute")
	return nil
}
