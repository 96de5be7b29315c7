package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/config"
	obsmetrics "github.com/smallbiznis/orgstore/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/orgstore/internal/organization/domain"
	"github.com/smallbiznis/orgstore/internal/partition"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakeOrgService struct {
	createCalls int
	renameCalls int
	deleteCalls int
	lastRename  orgdomain.RenameRequest
	err         error
}

func (f *fakeOrgService) Create(ctx context.Context, req orgdomain.CreateRequest) (*orgdomain.OrganizationResponse, error) {
	f.createCalls++
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &orgdomain.OrganizationResponse{
		ID:          "1",
		Name:        req.Name,
		PartitionID: "org_acmecorp",
		AdminEmail:  req.Email,
	}, nil
}

func (f *fakeOrgService) Get(ctx context.Context, name string) (*orgdomain.OrganizationResponse, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &orgdomain.OrganizationResponse{ID: "1", Name: name, PartitionID: "org_acmecorp"}, nil
}

func (f *fakeOrgService) Rename(ctx context.Context, principal *authdomain.Principal, req orgdomain.RenameRequest) (*orgdomain.OrganizationResponse, error) {
	f.renameCalls++
	f.lastRename = req
	_ = ctx
	_ = principal
	if f.err != nil {
		return nil, f.err
	}
	return &orgdomain.OrganizationResponse{ID: "1", Name: req.NewName}, nil
}

func (f *fakeOrgService) Delete(ctx context.Context, principal *authdomain.Principal, name string) error {
	f.deleteCalls++
	_ = ctx
	_ = principal
	_ = name
	return f.err
}

func (f *fakeOrgService) InsertRecord(ctx context.Context, principal *authdomain.Principal, name string, doc datatypes.JSON) (*partition.Record, error) {
	_ = ctx
	_ = principal
	_ = name
	if f.err != nil {
		return nil, f.err
	}
	return &partition.Record{ID: snowflake.ID(10), Doc: doc}, nil
}

func (f *fakeOrgService) ListRecords(ctx context.Context, principal *authdomain.Principal, name string) ([]partition.Record, error) {
	_ = ctx
	_ = principal
	_ = name
	if f.err != nil {
		return nil, f.err
	}
	return []partition.Record{}, nil
}

func (f *fakeOrgService) Orphans(ctx context.Context) ([]partition.ID, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return []partition.ID{"org_stale"}, nil
}

type fakeAuthService struct {
	principal *authdomain.Principal
	loginErr  error
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	_ = ctx
	_ = req
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authdomain.LoginResult{Token: "issued-token", TokenType: "bearer"}, nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Principal, error) {
	_ = ctx
	_ = rawToken
	if f.principal == nil {
		return nil, authdomain.ErrInvalidCredentials
	}
	return f.principal, nil
}

func (f *fakeAuthService) Authorize(principal *authdomain.Principal, orgID snowflake.ID) error {
	if principal == nil || principal.OrgID != orgID {
		return authdomain.ErrForbidden
	}
	return nil
}

func newTestServer(t *testing.T, orgsvc orgdomain.Service, authsvc authdomain.Service) *Server {
	t.Helper()

	registry := prometheus.NewRegistry()
	engine := NewEngine(obsmetrics.NewHTTP(registry))
	s := NewServer(config.Config{AppName: "orgstore"}, zap.NewNop(), engine, orgsvc, authsvc, registry)
	registerRoutes(s)
	return s
}

func perform(s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func TestCreateOrganizationHandler(t *testing.T) {
	orgsvc := &fakeOrgService{}
	s := newTestServer(t, orgsvc, &fakeAuthService{})

	w := perform(s, http.MethodPost, "/org/create", CreateOrgRequest{
		OrganizationName: "AcmeCorp",
		Email:            "admin@acme.com",
		Password:         "strong-password",
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if orgsvc.createCalls != 1 {
		t.Fatalf("expected service call, got %d", orgsvc.createCalls)
	}
}

func TestCreateConflictMapsTo409(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{err: orgdomain.ErrOrgExists}, &fakeAuthService{})

	w := perform(s, http.MethodPost, "/org/create", CreateOrgRequest{
		OrganizationName: "AcmeCorp",
		Email:            "admin@acme.com",
		Password:         "strong-password",
	}, nil)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestGetOrganizationNotFound(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{err: orgdomain.ErrOrgNotFound}, &fakeAuthService{})

	w := perform(s, http.MethodGet, "/org/get?organization_name=Ghost", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetOrganizationRequiresName(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{}, &fakeAuthService{})

	w := perform(s, http.MethodGet, "/org/get", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateRequiresAuth(t *testing.T) {
	orgsvc := &fakeOrgService{}
	s := newTestServer(t, orgsvc, &fakeAuthService{})

	w := perform(s, http.MethodPut, "/org/update", UpdateOrgRequest{
		OrganizationName:    "AcmeCorp",
		NewOrganizationName: "AcmeGlobal",
	}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if orgsvc.renameCalls != 0 {
		t.Fatal("service must not be reached without a credential")
	}
}

func TestUpdateWithToken(t *testing.T) {
	orgsvc := &fakeOrgService{}
	authsvc := &fakeAuthService{principal: &authdomain.Principal{AdminID: 1, OrgID: 7}}
	s := newTestServer(t, orgsvc, authsvc)

	w := perform(s, http.MethodPut, "/org/update", UpdateOrgRequest{
		OrganizationName:    "AcmeCorp",
		NewOrganizationName: "AcmeGlobal",
	}, map[string]string{"Authorization": "Bearer issued-token"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if orgsvc.lastRename.NewName != "AcmeGlobal" {
		t.Fatalf("unexpected rename request %+v", orgsvc.lastRename)
	}
}

func TestDeleteForbiddenMapsTo403(t *testing.T) {
	orgsvc := &fakeOrgService{err: authdomain.ErrForbidden}
	authsvc := &fakeAuthService{principal: &authdomain.Principal{AdminID: 1, OrgID: 7}}
	s := newTestServer(t, orgsvc, authsvc)

	w := perform(s, http.MethodDelete, "/org/delete", DeleteOrgRequest{
		OrganizationName: "Globex",
	}, map[string]string{"Authorization": "Bearer issued-token"})

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{}, &fakeAuthService{})

	w := perform(s, http.MethodPost, "/admin/login", LoginRequest{
		Email:    "admin@acme.com",
		Password: "strong-password",
	}, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var result authdomain.LoginResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Token != "issued-token" || result.TokenType != "bearer" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestLoginInvalidCredentialsMapsTo401(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{}, &fakeAuthService{loginErr: authdomain.ErrInvalidCredentials})

	w := perform(s, http.MethodPost, "/admin/login", LoginRequest{
		Email:    "admin@acme.com",
		Password: "wrong",
	}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestStoreUnavailableMapsTo503(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{err: orgdomain.ErrStoreUnavailable}, &fakeAuthService{})

	w := perform(s, http.MethodGet, "/org/get?organization_name=AcmeCorp", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestListOrphans(t *testing.T) {
	s := newTestServer(t, &fakeOrgService{}, &fakeAuthService{})

	w := perform(s, http.MethodGet, "/ops/orphans", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Orphans []string `json:"orphans"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Orphans) != 1 || payload.Orphans[0] != "org_stale" {
		t.Fatalf("unexpected orphans %v", payload.Orphans)
	}
}
