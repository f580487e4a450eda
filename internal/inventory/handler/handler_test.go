package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	catalogservice "arsenal/internal/catalog/service"
	catalogstore "arsenal/internal/catalog/store"
	"arsenal/internal/inventory/service"
	"arsenal/internal/inventory/store"
	id "arsenal/pkg/domain"
	"arsenal/pkg/testutil"
)

type InventoryHandlerSuite struct {
	suite.Suite
	router  chi.Router
	modelID id.WeaponModelID
}

func TestInventoryHandlerSuite(t *testing.T) {
	suite.Run(t, new(InventoryHandlerSuite))
}

func (s *InventoryHandlerSuite) SetupTest() {
	ctx := context.Background()
	catalog := catalogservice.New(catalogstore.NewInMemory())
	m, err := catalog.Register(ctx, "M1", "Model One", "9mm", id.CategoryCivil, decimal.NewFromInt(1))
	s.Require().NoError(err)
	s.modelID = m.ID

	svc := service.New(store.NewInMemory(), catalog)
	s.router = chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *InventoryHandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *InventoryHandlerSuite) TestLoadAndRead() {
	s.Run("load returns 201", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/units", LoadUnitRequest{
			Serial: "sn-aaa", WeaponModelID: s.modelID.String(),
		}))
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("duplicate returns 409 with code", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/units", LoadUnitRequest{
			Serial: "SN-AAA", WeaponModelID: s.modelID.String(),
		}))
		s.Equal(http.StatusConflict, rec.Code)
		var body map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("duplicate_serial", body["error"])
	})

	s.Run("missing model id is a validation error", func() {
		rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/units", map[string]string{"serial": "SN-B"}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("get by serial", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/inventory/units/sn-aaa", nil))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("unknown serial is 404", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/inventory/units/nope", nil))
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("list available", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/inventory/available?weapon_model_id="+s.modelID.String(), nil))
		s.Equal(http.StatusOK, rec.Code)
		var body struct {
			Count int `json:"count"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(1, body.Count)
	})

	s.Run("release of available unit is 409", func() {
		rec := s.do(httptest.NewRequest(http.MethodPost, "/inventory/units/SN-AAA/release", nil))
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("bad group id is 400", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/inventory/available?weapon_model_id="+s.modelID.String()+"&import_group_id=x", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("stats", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/inventory/stats", nil))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), s.modelID.String())
	})
}
