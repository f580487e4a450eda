package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"arsenal/internal/catalog/models"
	"arsenal/internal/catalog/service"
	"arsenal/internal/catalog/store"
	"arsenal/pkg/testutil"
)

type CatalogHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestCatalogHandlerSuite(t *testing.T) {
	suite.Run(t, new(CatalogHandlerSuite))
}

func (s *CatalogHandlerSuite) SetupTest() {
	s.router = chi.NewRouter()
	New(service.New(store.NewInMemory()), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *CatalogHandlerSuite) do(req *http.Request) int {
	return testutil.DoRequest(s.router, req).Code
}

func (s *CatalogHandlerSuite) TestRegisterAndLookup() {
	rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/catalog/models", RegisterModelRequest{
		Code: "G17", Name: "Glock 17", Caliber: "9mm", Category: "civil", ReferencePrice: "650.00",
	}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	m := testutil.UnmarshalResponse[models.WeaponModel](s.T(), rec)
	s.Equal("G17", m.Code)

	s.Equal(http.StatusOK, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/catalog/models/g17")))
	s.Equal(http.StatusNotFound, s.do(testutil.NewRequest(s.T(), http.MethodGet, "/catalog/models/NOPE")))

	s.Equal(http.StatusBadRequest, s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/catalog/models", RegisterModelRequest{
		Code: "X", Name: "X", Category: "civil", ReferencePrice: "abc",
	})))
}

func (s *CatalogHandlerSuite) TestClientCategory() {
	path := "/clients/" + uuid.NewString() + "/category"
	s.Equal(http.StatusNotFound, s.do(testutil.NewRequest(s.T(), http.MethodGet, path)))

	s.Equal(http.StatusOK, s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, path, CategoryRequest{Category: "Military"})))
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.AssertJSONContains(s.T(), rec, "category", "military")

	s.Equal(http.StatusBadRequest, s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, path, CategoryRequest{Category: "navy"})))
}
