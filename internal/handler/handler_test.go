package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/xrplradar-system/internal/model"
	"github.com/mmeshcher/xrplradar-system/internal/repository"
	"github.com/mmeshcher/xrplradar-system/internal/service"
)

type stubService struct {
	registerID  string
	registerErr error

	authUser *model.User
	authErr  error

	getUser    *model.User
	getUserErr error

	updatedUser   *model.User
	updateErr     error
	updatePatch   model.CardPatch
	updatedUserID string

	series    []model.ServiceUawSeries
	seriesErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (string, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) GetUserByID(ctx context.Context, internalID string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubService) UpdateUserCard(ctx context.Context, internalID string, patch model.CardPatch) (*model.User, error) {
	s.updatedUserID = internalID
	s.updatePatch = patch
	return s.updatedUser, s.updateErr
}

func (s *stubService) GetServiceUawSeries(ctx context.Context) ([]model.ServiceUawSeries, error) {
	return s.series, s.seriesErr
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger).SetupRouter()
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*http.Response, envelope, string) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	raw := rec.Body.String()

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope from %q: %v", raw, err)
	}

	return res, env, raw
}

func TestGetApps_Success(t *testing.T) {
	values := make([]int, 168)
	values[167] = 42

	svc := &stubService{
		series: []model.ServiceUawSeries{
			{ServiceName: "xrpl-dex", Values: values},
		},
	}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodGet, "/api/apps", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !env.Success || env.Code != http.StatusOK {
		t.Fatalf("envelope = %+v, want success with code 200", env)
	}

	var data []model.ServiceUawSeries
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if len(data) != 1 || data[0].ServiceName != "xrpl-dex" {
		t.Fatalf("unexpected data: %+v", data)
	}
	if len(data[0].Values) != 168 || data[0].Values[167] != 42 {
		t.Fatalf("unexpected values: len=%d", len(data[0].Values))
	}
}

func TestGetApps_StoreError(t *testing.T) {
	svc := &stubService{seriesErr: context.DeadlineExceeded}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodGet, "/api/apps", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusInternalServerError)
	}
	if env.Success || env.Code != http.StatusInternalServerError {
		t.Fatalf("envelope = %+v, want failure with code 500", env)
	}
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerID: "8a6e0804-2bd0-4672-b79d-d97027f9071a"}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodPost, "/api/user", `{"id":"alice","password":"pw"}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var data struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.UserID != "8a6e0804-2bd0-4672-b79d-d97027f9071a" {
		t.Fatalf("userId = %q, want generated id", data.UserID)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodPost, "/api/user", `{"id":"alice","password":"pw"}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
	if env.Success || env.Code != http.StatusConflict {
		t.Fatalf("envelope = %+v, want failure with code 409", env)
	}
}

func TestRegister_InvalidBody(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json"},
		{name: "empty login", body: `{"id":"","password":"pw"}`},
		{name: "login with spaces", body: `{"id":"a b","password":"pw"}`},
		{name: "empty password", body: `{"id":"alice","password":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, env, _ := doRequest(t, router, http.MethodPost, "/api/user", tt.body)
			defer res.Body.Close()

			if res.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
			}
			if env.Success {
				t.Fatalf("envelope must report failure: %+v", env)
			}
		})
	}
}

func TestLogin_Success_HidesPasswordHash(t *testing.T) {
	svc := &stubService{
		authUser: &model.User{
			InternalID:   "u-1",
			Login:        "alice",
			PasswordHash: "$2a$10$secret-hash",
			Card:         model.Card{Grade: "bronze", Sequence: 3},
		},
	}
	router := newTestRouter(t, svc)

	res, env, raw := doRequest(t, router, http.MethodPost, "/api/user/login", `{"id":"alice","password":"pw"}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var data struct {
		InternalID string     `json:"_id"`
		Login      string     `json:"id"`
		Card       model.Card `json:"card"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.InternalID != "u-1" || data.Login != "alice" || data.Card.Sequence != 3 {
		t.Fatalf("unexpected account data: %+v", data)
	}

	if strings.Contains(raw, "secret-hash") || strings.Contains(raw, "password") {
		t.Fatalf("response leaks password hash: %s", raw)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unknown login", err: repository.ErrUserNotFound},
		{name: "wrong password", err: service.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &stubService{authErr: tt.err})

			res, env, _ := doRequest(t, router, http.MethodPost, "/api/user/login", `{"id":"alice","password":"pw"}`)
			defer res.Body.Close()

			if res.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
			}
			if env.Success || env.Code != http.StatusUnauthorized {
				t.Fatalf("envelope = %+v, want failure with code 401", env)
			}
		})
	}
}

func TestGetUser_Found(t *testing.T) {
	svc := &stubService{
		getUser: &model.User{
			InternalID: "u-1",
			Login:      "alice",
			Card:       model.Card{Grade: "gold", Sequence: 1},
		},
	}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodGet, "/api/user/u-1", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if string(env.Data) == "null" {
		t.Fatalf("expected account data, got null")
	}
}

func TestGetUser_AbsentIsNullData(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	res, env, _ := doRequest(t, router, http.MethodGet, "/api/user/unknown", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if !env.Success {
		t.Fatalf("absent user must not be an error: %+v", env)
	}
	if string(env.Data) != "null" {
		t.Fatalf("data = %s, want null", env.Data)
	}
}

func TestUpdateCard_PassesPatchThrough(t *testing.T) {
	svc := &stubService{
		updatedUser: &model.User{
			InternalID: "u-1",
			Login:      "alice",
			Card:       model.Card{Grade: "gold", Sequence: 3, Color1: 1, Color2: 2, Color3: 3},
		},
	}
	router := newTestRouter(t, svc)

	res, env, _ := doRequest(t, router, http.MethodPatch, "/api/user/u-1", `{"card":{"grade":"gold"}}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	if svc.updatedUserID != "u-1" {
		t.Fatalf("service called with id %q, want u-1", svc.updatedUserID)
	}
	if svc.updatePatch.Grade == nil || *svc.updatePatch.Grade != "gold" {
		t.Fatalf("grade patch not passed through: %+v", svc.updatePatch)
	}
	if svc.updatePatch.Sequence != nil || svc.updatePatch.Color1 != nil {
		t.Fatalf("omitted fields must stay nil: %+v", svc.updatePatch)
	}

	var data struct {
		Card model.Card `json:"card"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Card.Grade != "gold" || data.Card.Sequence != 3 {
		t.Fatalf("unexpected card: %+v", data.Card)
	}
}

func TestUpdateCard_MissingCardObject(t *testing.T) {
	svc := &stubService{
		updatedUser: &model.User{InternalID: "u-1"},
	}
	router := newTestRouter(t, svc)

	res, _, _ := doRequest(t, router, http.MethodPatch, "/api/user/u-1", `{}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.updatePatch != (model.CardPatch{}) {
		t.Fatalf("missing card object must mean empty patch: %+v", svc.updatePatch)
	}
}

func TestUpdateCard_UnknownUserIsNullData(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	res, env, _ := doRequest(t, router, http.MethodPatch, "/api/user/unknown", `{"card":{"grade":"gold"}}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if string(env.Data) != "null" {
		t.Fatalf("data = %s, want null", env.Data)
	}
}

func TestRouter_NotFoundEnvelope(t *testing.T) {
	router := newTestRouter(t, &stubService{})

	res, env, _ := doRequest(t, router, http.MethodGet, "/api/unknown", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
	if env.Success || env.Code != http.StatusNotFound {
		t.Fatalf("envelope = %+v, want failure with code 404", env)
	}
}
