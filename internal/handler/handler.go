// Package handler содержит HTTP-обработчики API сервиса xrpl-radar.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	"github.com/mmeshcher/xrplradar-system/internal/model"
	"github.com/mmeshcher/xrplradar-system/internal/repository"
	"github.com/mmeshcher/xrplradar-system/internal/service"
	"github.com/mmeshcher/xrplradar-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (string, error)
	AuthenticateUser(ctx context.Context, login, password string) (*model.User, error)
	GetUserByID(ctx context.Context, internalID string) (*model.User, error)
	UpdateUserCard(ctx context.Context, internalID string, patch model.CardPatch) (*model.User, error)
	GetServiceUawSeries(ctx context.Context) ([]model.ServiceUawSeries, error)
}

// Handler реализует HTTP-обработчики API сервиса xrpl-radar.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// responseEnvelope — единый формат ответа API: каждый ответ, успешный или
// нет, заворачивается в {success, code, message, data}.
type responseEnvelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (h *Handler) writeSuccess(w http.ResponseWriter, message string, data any) {
	h.writeEnvelope(w, http.StatusOK, responseEnvelope{
		Success: true,
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func (h *Handler) writeFail(w http.ResponseWriter, code int, message string) {
	h.writeEnvelope(w, code, responseEnvelope{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, env responseEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// GetApps возвращает временные ряды UAW всех сервисов за последние 168 часов.
func (h *Handler) GetApps(w http.ResponseWriter, r *http.Request) {
	series, err := h.service.GetServiceUawSeries(r.Context())
	if err != nil {
		h.logger.Error("get uaw series error", zap.Error(err))
		h.writeFail(w, http.StatusInternalServerError, "failed to load app list")
		return
	}

	h.writeSuccess(w, "app list retrieved", series)
}

type userRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
}

type userIDResponse struct {
	UserID string `json:"userId"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validation.IsValidLogin(req.ID) || req.Password == "" {
		h.writeFail(w, http.StatusBadRequest, "invalid id or password")
		return
	}

	internalID, err := h.service.RegisterUser(r.Context(), req.ID, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			h.writeFail(w, http.StatusConflict, "user already exists")
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		h.writeFail(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.writeSuccess(w, "user registered", userIDResponse{UserID: internalID})
}

// Login выполняет аутентификацию пользователя и возвращает его запись.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" || req.Password == "" {
		h.writeFail(w, http.StatusBadRequest, "invalid id or password")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.ID, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			h.writeFail(w, http.StatusUnauthorized, "invalid login or password")
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		h.writeFail(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.writeSuccess(w, "login succeeded", u)
}

// GetUser возвращает пользователя по внутреннему идентификатору.
// Для неизвестного идентификатора data равна null, ответ считается успешным.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	internalID := chi.URLParam(r, "userId")

	u, err := h.service.GetUserByID(r.Context(), internalID)
	if err != nil {
		h.logger.Error("get user error", zap.Error(err), zap.String("userID", internalID))
		h.writeFail(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	h.writeSuccess(w, "user retrieved", u)
}

type cardUpdateRequest struct {
	Card *model.CardPatch `json:"card"`
}

// UpdateCard применяет частичное обновление карточки пользователя.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	internalID := chi.URLParam(r, "userId")

	var req cardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var patch model.CardPatch
	if req.Card != nil {
		patch = *req.Card
	}

	u, err := h.service.UpdateUserCard(r.Context(), internalID, patch)
	if err != nil {
		h.logger.Error("update card error", zap.Error(err), zap.String("userID", internalID))
		h.writeFail(w, http.StatusInternalServerError, "failed to update card")
		return
	}

	h.writeSuccess(w, "card updated", u)
}
