// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/xrplradar-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// Ретраи полезны для Serialization Failure и Deadlocks,
			// переподключением pgxpool управляет сам.
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser сохраняет нового пользователя вместе с карточкой.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (internal_id, login, password_hash, card_grade, card_sequence, card_color1, card_color2, card_color3)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.InternalID, u.Login, u.PasswordHash,
		u.Card.Grade, u.Card.Sequence, u.Card.Color1, u.Card.Color2, u.Card.Color3,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Login)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return r.getUser(ctx,
		`SELECT internal_id, login, password_hash, card_grade, card_sequence, card_color1, card_color2, card_color3
		 FROM users WHERE login = $1`,
		login,
	)
}

// GetUserByInternalID возвращает пользователя по внутреннему идентификатору.
func (r *PostgresRepository) GetUserByInternalID(ctx context.Context, internalID string) (*model.User, error) {
	return r.getUser(ctx,
		`SELECT internal_id, login, password_hash, card_grade, card_sequence, card_color1, card_color2, card_color3
		 FROM users WHERE internal_id = $1`,
		internalID,
	)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	row := r.pool.QueryRow(ctx, query, arg)

	var u model.User
	err := row.Scan(&u.InternalID, &u.Login, &u.PasswordHash,
		&u.Card.Grade, &u.Card.Sequence, &u.Card.Color1, &u.Card.Color2, &u.Card.Color3)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CountUsers возвращает текущее количество зарегистрированных пользователей.
func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// UpdateUserCard перезаписывает карточку пользователя целиком.
// Версионирования нет: при конкурентных обновлениях побеждает последняя запись.
func (r *PostgresRepository) UpdateUserCard(ctx context.Context, internalID string, card model.Card) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET card_grade = $2, card_sequence = $3, card_color1 = $4, card_color2 = $5, card_color3 = $6
		 WHERE internal_id = $1`,
		internalID, card.Grade, card.Sequence, card.Color1, card.Color2, card.Color3,
	)
	if err != nil {
		return fmt.Errorf("update user card: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUawRecordsInRange возвращает почасовые записи UAW, попадающие во
// включительный диапазон [start, end]. Порядок записей не гарантируется.
func (r *PostgresRepository) GetUawRecordsInRange(ctx context.Context, start, end time.Time) ([]model.UawHourlyRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT service_name, uaw_count, total_transactions, collection_start_time
		 FROM uaw_records
		 WHERE collection_start_time >= $1 AND collection_start_time <= $2`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select uaw records: %w", err)
	}
	defer rows.Close()

	var records []model.UawHourlyRecord
	for rows.Next() {
		var rec model.UawHourlyRecord
		if err := rows.Scan(&rec.ServiceName, &rec.UawCount, &rec.TotalTransactions, &rec.CollectionStartTime); err != nil {
			return nil, fmt.Errorf("scan uaw record: %w", err)
		}
		rec.CollectionStartTime = rec.CollectionStartTime.UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

// SaveUawRecord сохраняет одну почасовую запись UAW, собранную коллектором.
func (r *PostgresRepository) SaveUawRecord(ctx context.Context, rec model.UawHourlyRecord) error {
	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO uaw_records (service_name, uaw_count, total_transactions, collection_start_time)
			 VALUES ($1, $2, $3, $4)`,
			rec.ServiceName, rec.UawCount, rec.TotalTransactions, rec.CollectionStartTime,
		)
		if err != nil {
			return fmt.Errorf("insert uaw record: %w", err)
		}
		return nil
	})
}

// GetDappServiceNames возвращает имена сервисов из реестра приложений.
func (r *PostgresRepository) GetDappServiceNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT service_name FROM dapps ORDER BY service_name`)
	if err != nil {
		return nil, fmt.Errorf("select dapp services: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dapp service: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return names, nil
}
