// Package postgres implements port.Store on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var tracer = otel.Tracer("postgres")

const uniqueViolation = "23505"

// Open connects to dsn and configures the pool. The handle is created once in
// main and injected into the Store.
func Open(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	gl := gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gl,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRow{},
		&companyRow{},
		&numberRow{},
		&subscriptionRow{},
		&settingsRow{},
	)
}

// Store implements port.Store. Saves overwrite the whole row; concurrent
// writers to the same row race and the last one wins.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks the connection; used by /readyz.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// first runs q.First and maps "not found" to ok=false.
func first(q *gorm.DB, dest any) (bool, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// save creates the row when *id is empty (assigning a new uuid) and
// overwrites it otherwise.
func save(ctx context.Context, db *gorm.DB, id *string, row any) error {
	if *id == "" {
		*id = uuid.NewString()
		return db.WithContext(ctx).Create(row).Error
	}
	return db.WithContext(ctx).Save(row).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Users ---

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindUserByID")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id))

	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var row userRow
	ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row)
	if err != nil || !ok {
		return nil, wrap("find user", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindUserByEmail")
	defer span.End()

	var row userRow
	ok, err := first(s.db.WithContext(ctx).Where("email = ?", email), &row)
	if err != nil || !ok {
		return nil, wrap("find user by email", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveUser")
	defer span.End()

	row := toUserRow(u)
	if err := save(ctx, s.db, &row.ID, row); err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "E-mail já cadastrado"}
		}
		return wrap("save user", err)
	}
	*u = *row.toDomain()
	return nil
}

// --- Companies ---

func (s *Store) FindCompanyByOwner(ctx context.Context, ownerID string) (*domain.Company, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindCompanyByOwner")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", ownerID))

	var row companyRow
	ok, err := first(s.db.WithContext(ctx).Where("owner_id = ?", ownerID), &row)
	if err != nil || !ok {
		return nil, wrap("find company", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveCompany(ctx context.Context, c *domain.Company) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveCompany")
	defer span.End()

	row := toCompanyRow(c)
	if err := save(ctx, s.db, &row.ID, row); err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "Empresa já cadastrada"}
		}
		return wrap("save company", err)
	}
	*c = *row.toDomain()
	return nil
}

// --- Numbers ---

func (s *Store) FindReservedNumber(ctx context.Context, companyID string) (*domain.ReservedNumber, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindReservedNumber")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	var row numberRow
	q := s.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, domain.NumberReserved).
		Order("updated_at DESC")
	ok, err := first(q, &row)
	if err != nil || !ok {
		return nil, wrap("find reserved number", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListNumbers(ctx context.Context, companyID string) ([]domain.ReservedNumber, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListNumbers")
	defer span.End()

	var rows []numberRow
	if err := s.db.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, wrap("list numbers", err)
	}
	out := make([]domain.ReservedNumber, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) SaveNumber(ctx context.Context, n *domain.ReservedNumber) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveNumber")
	defer span.End()

	row := toNumberRow(n)
	if err := save(ctx, s.db, &row.ID, row); err != nil {
		return wrap("save number", err)
	}
	*n = *row.toDomain()
	return nil
}

// --- Subscriptions ---

func (s *Store) FindSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindSubscriptionByUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var row subscriptionRow
	ok, err := first(s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC"), &row)
	if err != nil || !ok {
		return nil, wrap("find subscription", err)
	}
	return row.toDomain(), nil
}

func (s *Store) FindSubscriptionByProviderID(ctx context.Context, providerID string) (*domain.Subscription, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindSubscriptionByProviderID")
	defer span.End()

	var row subscriptionRow
	ok, err := first(s.db.WithContext(ctx).Where("stripe_subscription_id = ?", providerID), &row)
	if err != nil || !ok {
		return nil, wrap("find subscription by provider id", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveSubscription")
	defer span.End()

	row := toSubscriptionRow(sub)
	if err := save(ctx, s.db, &row.ID, row); err != nil {
		return wrap("save subscription", err)
	}
	*sub = *row.toDomain()
	return nil
}

// --- Settings ---

func (s *Store) FindSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FindSettings")
	defer span.End()

	var row settingsRow
	ok, err := first(s.db.WithContext(ctx).Where("user_id = ?", userID), &row)
	if err != nil || !ok {
		return nil, wrap("find settings", err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveSettings(ctx context.Context, set *domain.UserSettings) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveSettings")
	defer span.End()

	row := toSettingsRow(set)
	if err := save(ctx, s.db, &row.ID, row); err != nil {
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: "Configurações já existem"}
		}
		return wrap("save settings", err)
	}
	*set = *row.toDomain()
	return nil
}

// wrap returns nil for a nil err so Find* can share one return statement for
// the found-nothing and failed cases.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
