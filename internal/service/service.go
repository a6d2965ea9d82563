// Package service реализует бизнес-логику сервиса xrpl-radar.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/xrplradar-system/internal/analyzer"
	"github.com/mmeshcher/xrplradar-system/internal/model"
	"github.com/mmeshcher/xrplradar-system/internal/repository"
	"github.com/mmeshcher/xrplradar-system/internal/timeutil"
	"github.com/mmeshcher/xrplradar-system/internal/uaw"
)

// ErrInvalidCredentials возвращается при несовпадении пароля.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Интервал проверки появления нового завершённого часа для коллектора.
const collectPollInterval = time.Minute

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByInternalID(ctx context.Context, internalID string) (*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUserCard(ctx context.Context, internalID string, card model.Card) error
	GetUawRecordsInRange(ctx context.Context, start, end time.Time) ([]model.UawHourlyRecord, error)
	SaveUawRecord(ctx context.Context, rec model.UawHourlyRecord) error
	GetDappServiceNames(ctx context.Context) ([]string, error)
}

// Service содержит бизнес-логику сервиса xrpl-radar.
type Service struct {
	repo           Repository
	analyzerClient *analyzer.Client
	now            func() time.Time

	// Последний час, собранный коллектором. Читается и пишется только
	// горутиной коллектора.
	lastCollected time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом анализатора.
func NewService(repo Repository, analyzerClient *analyzer.Client) *Service {
	return &Service{
		repo:           repo,
		analyzerClient: analyzerClient,
		now:            time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя и возвращает его внутренний
// идентификатор. Карточка заполняется значениями по умолчанию; sequence —
// это количество учётных записей на момент регистрации. Подсчёт и вставка
// не атомарны: конкурентные регистрации могут получить одинаковый sequence.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return "", err
	}

	u := &model.User{
		InternalID:   uuid.NewString(),
		Login:        login,
		PasswordHash: string(hash),
		Card: model.Card{
			Grade:    "bronze",
			Sequence: int(count),
		},
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return "", err
	}

	return u.InternalID, nil
}

// AuthenticateUser проверяет логин и пароль и возвращает полную запись
// пользователя. Для неизвестного логина возвращается repository.ErrUserNotFound,
// для неверного пароля — ErrInvalidCredentials.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
// Отсутствие пользователя — не ошибка: возвращается (nil, nil).
func (s *Service) GetUserByID(ctx context.Context, internalID string) (*model.User, error) {
	u, err := s.repo.GetUserByInternalID(ctx, internalID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpdateUserCard применяет частичное обновление карточки и возвращает
// обновлённую запись пользователя. Для неизвестного идентификатора
// возвращается (nil, nil). Слияние идёт по полям: заданное поле patch
// заменяет текущее значение, nil-поле сохраняет его. Чтение и запись не
// связаны транзакцией: при конкурентных обновлениях одной карточки
// побеждает последняя запись целиком.
func (s *Service) UpdateUserCard(ctx context.Context, internalID string, patch model.CardPatch) (*model.User, error) {
	u, err := s.repo.GetUserByInternalID(ctx, internalID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	merged := mergeCard(u.Card, patch)

	if err := s.repo.UpdateUserCard(ctx, internalID, merged); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	u.Card = merged
	return u, nil
}

func mergeCard(current model.Card, patch model.CardPatch) model.Card {
	merged := current
	if patch.Grade != nil {
		merged.Grade = *patch.Grade
	}
	if patch.Sequence != nil {
		merged.Sequence = *patch.Sequence
	}
	if patch.Color1 != nil {
		merged.Color1 = *patch.Color1
	}
	if patch.Color2 != nil {
		merged.Color2 = *patch.Color2
	}
	if patch.Color3 != nil {
		merged.Color3 = *patch.Color3
	}
	return merged
}

// GetServiceUawSeries строит по сохранённым почасовым записям временной ряд
// UAW для каждого сервиса за последние 168 завершённых часов.
func (s *Service) GetServiceUawSeries(ctx context.Context) ([]model.ServiceUawSeries, error) {
	now := s.now()
	start := timeutil.WindowStart(now)
	end := timeutil.LatestCompletedHourStart(now)

	records, err := s.repo.GetUawRecordsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return uaw.BuildSeries(records), nil
}

// StartCollection запускает фоновый процесс сбора почасовых UAW-записей
// из анализатора для всех сервисов из реестра приложений.
func (s *Service) StartCollection(ctx context.Context) {
	if s.analyzerClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(collectPollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.collectLatestHour(ctx)
			}
		}
	}()
}

func (s *Service) collectLatestHour(ctx context.Context) {
	hourStart := timeutil.LatestCompletedHourStart(s.now())
	if !hourStart.After(s.lastCollected) {
		return
	}

	services, err := s.repo.GetDappServiceNames(ctx)
	if err != nil {
		return
	}

	hourEnd := hourStart.Add(time.Hour)

	for _, name := range services {
		stats, statusCode, retryAfter, err := s.analyzerClient.GetServiceStats(ctx, name, hourStart, hourEnd)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if stats == nil {
			continue
		}

		_ = s.repo.SaveUawRecord(ctx, model.UawHourlyRecord{
			ServiceName:         name,
			UawCount:            stats.UawCount,
			TotalTransactions:   stats.TotalTransactions,
			CollectionStartTime: hourStart,
		})
	}

	s.lastCollected = hourStart
}
