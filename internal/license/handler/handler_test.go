package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"arsenal/internal/license/models"
	"arsenal/internal/license/service"
	"arsenal/internal/license/store"
	"arsenal/pkg/testutil"
)

type LicenseHandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestLicenseHandlerSuite(t *testing.T) {
	suite.Run(t, new(LicenseHandlerSuite))
}

func (s *LicenseHandlerSuite) SetupTest() {
	s.router = chi.NewRouter()
	New(service.New(store.NewInMemory()), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *LicenseHandlerSuite) TestRegister() {
	rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/licenses", RegisterLicenseRequest{Number: " LIC-7 "}))
	s.Require().Equal(http.StatusCreated, rec.Code)
	l := testutil.UnmarshalResponse[models.License](s.T(), rec)
	s.Equal("LIC-7", l.Number)
	s.Equal(models.StatusFree, l.Status)

	s.Run("duplicate number conflicts", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/licenses", RegisterLicenseRequest{Number: "LIC-7"}))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "conflict")
	})

	s.Run("missing number", func() {
		rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/licenses", map[string]string{}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("get and list", func() {
		rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/licenses/"+l.ID.String()))
		s.Require().Equal(http.StatusOK, rec.Code)
		testutil.AssertJSONContains(s.T(), rec, "number", "LIC-7")

		rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/licenses"))
		s.Require().Equal(http.StatusOK, rec.Code)
		list := testutil.UnmarshalResponse[struct {
			Licenses []models.License `json:"licenses"`
		}](s.T(), rec)
		s.Len(list.Licenses, 1)
	})
}

func (s *LicenseHandlerSuite) TestGetErrors() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/licenses/not-a-uuid"))
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/licenses/"+uuid.NewString()))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "not_found")
}
