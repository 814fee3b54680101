package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/gig"
	"gigflow/hiring"
)

type stubAuthService struct {
	user      *auth.User
	userErr   error
	login     auth.LoginResult
	loginErr  error
	token     string
	tokenErr  error
	verifyID  string
	verifyRol auth.Role
	verifyErr error
}

func (s *stubAuthService) Register(_ context.Context, _ auth.RegisterRequest) (*auth.User, error) {
	return s.user, s.userErr
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginRequest) (auth.LoginResult, error) {
	return s.login, s.loginErr
}

func (s *stubAuthService) GetUserByID(_ context.Context, _ string) (*auth.User, error) {
	return s.user, s.userErr
}

func (s *stubAuthService) VerifyToken(_ string) (string, auth.Role, error) {
	return s.verifyID, s.verifyRol, s.verifyErr
}

func (s *stubAuthService) GenerateToken(_ string, _ auth.Role) (string, error) {
	return s.token, s.tokenErr
}

type stubGigService struct {
	created    gig.Gig
	createErr  error
	updated    gig.Gig
	updateErr  error
	deleteErr  error
	detail     gig.Gig
	detailBids []bid.Bid
	detailErr  error
	open       []gig.Gig
	searchHits []gig.Gig
	summaries  []gig.Summary

	detailViewer string
}

func (s *stubGigService) Create(_ context.Context, _ gig.CreateParams) (gig.Gig, error) {
	return s.created, s.createErr
}

func (s *stubGigService) Update(_ context.Context, _, _ string, _ gig.UpdateParams) (gig.Gig, error) {
	return s.updated, s.updateErr
}

func (s *stubGigService) Delete(_ context.Context, _, _ string) error {
	return s.deleteErr
}

func (s *stubGigService) Details(_ context.Context, _, viewerID string) (gig.Gig, []bid.Bid, error) {
	s.detailViewer = viewerID
	return s.detail, s.detailBids, s.detailErr
}

func (s *stubGigService) ListOpen(_ context.Context) ([]gig.Gig, error) {
	return s.open, nil
}

func (s *stubGigService) Search(_ context.Context, _ string) ([]gig.Gig, error) {
	return s.searchHits, nil
}

func (s *stubGigService) ListForOwner(_ context.Context, _ string) ([]gig.Summary, error) {
	return s.summaries, nil
}

type stubBidService struct {
	created   bid.Bid
	submitErr error
	gigBids   []bid.Bid
	listErr   error
	myBids    []bid.WithGig
}

func (s *stubBidService) Submit(_ context.Context, _ bid.SubmitParams) (bid.Bid, error) {
	return s.created, s.submitErr
}

func (s *stubBidService) ListForGig(_ context.Context, _, _ string) ([]bid.Bid, error) {
	return s.gigBids, s.listErr
}

func (s *stubBidService) ListForBidder(_ context.Context, _ string) ([]bid.WithGig, error) {
	return s.myBids, nil
}

type stubCoordinator struct {
	result hiring.HireResult
	err    error
	params hiring.HireParams
	called bool
}

func (s *stubCoordinator) Hire(_ context.Context, params hiring.HireParams) (hiring.HireResult, error) {
	s.params = params
	s.called = true
	return s.result, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func asUser(r *http.Request, userID string, role auth.Role) *http.Request {
	ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyRole, role)
	return r.WithContext(ctx)
}

func TestHandleRegister_Success(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	server := &Server{
		authService: &stubAuthService{
			user:  &auth.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: auth.RoleOwner, CreatedAt: now},
			token: "tok-1",
		},
		logger: testLogger(),
	}

	body := strings.NewReader(`{"name":"Ana","email":"ana@example.com","password":"supersecret","role":"owner"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp struct {
		User  userResponse `json:"user"`
		Token string       `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.ID != "u1" || resp.User.Role != "owner" || resp.Token != "tok-1" {
		t.Fatalf("unexpected payload: %+v", resp)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != tokenCookieName || cookies[0].Value != "tok-1" {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("session cookie must be http-only")
	}
}

func TestHandleRegister_DuplicateEmail(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{userErr: auth.ErrDuplicateEmail},
		logger:      testLogger(),
	}

	body := strings.NewReader(`{"name":"Ana","email":"ana@example.com","password":"supersecret"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", body)
	rec := httptest.NewRecorder()

	server.handleRegister(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	server := &Server{
		authService: &stubAuthService{loginErr: auth.ErrInvalidCredentials},
		logger:      testLogger(),
	}

	body := strings.NewReader(`{"email":"ana@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	rec := httptest.NewRecorder()

	server.handleLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCreateGig_ForbidFreelancerRole(t *testing.T) {
	server := &Server{gigService: &stubGigService{}, logger: testLogger()}

	body := strings.NewReader(`{"title":"Logo","description":"Need a logo","budget":"100"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/gigs", body)
	rec := httptest.NewRecorder()

	server.handleCreateGig(rec, asUser(req, "u1", auth.RoleFreelancer))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleCreateGig_Success(t *testing.T) {
	now := time.Now().UTC()
	server := &Server{
		gigService: &stubGigService{
			created: gig.Gig{ID: "g1", Title: "Logo", Budget: "100", OwnerID: "u1", OwnerName: "Ana", Status: gig.StatusOpen, CreatedAt: now, UpdatedAt: now},
		},
		logger: testLogger(),
	}

	body := strings.NewReader(`{"title":"Logo","description":"Need a logo","budget":"100"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/gigs", body)
	rec := httptest.NewRecorder()

	server.handleCreateGig(rec, asUser(req, "u1", auth.RoleOwner))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp gigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != "g1" || resp.Status != "open" || resp.Owner.Name != "Ana" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleGigDetail_AnonymousViewer(t *testing.T) {
	gigSvc := &stubGigService{detail: gig.Gig{ID: "g1", Status: gig.StatusOpen}}
	server := &Server{
		authService: &stubAuthService{verifyErr: auth.ErrInvalidToken},
		gigService:  gigSvc,
		logger:      testLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/gigs/g1", nil)
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleGigDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gigSvc.detailViewer != "" {
		t.Errorf("anonymous request must resolve to an empty viewer, got %q", gigSvc.detailViewer)
	}
}

func TestHandleGigDetail_AuthenticatedViewer(t *testing.T) {
	gigSvc := &stubGigService{detail: gig.Gig{ID: "g1", Status: gig.StatusOpen}}
	server := &Server{
		authService: &stubAuthService{verifyID: "u7", verifyRol: auth.RoleFreelancer},
		gigService:  gigSvc,
		logger:      testLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/gigs/g1", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "tok"})
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleGigDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gigSvc.detailViewer != "u7" {
		t.Errorf("expected viewer u7, got %q", gigSvc.detailViewer)
	}
}

func TestHandleSubmitBid_GigClosed(t *testing.T) {
	server := &Server{
		bidService: &stubBidService{submitErr: bid.ErrGigNotOpen},
		logger:     testLogger(),
	}

	body := strings.NewReader(`{"gigId":"g1","amount":120,"message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/bids", body)
	rec := httptest.NewRecorder()

	server.handleSubmitBid(rec, asUser(req, "u2", auth.RoleFreelancer))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleSubmitBid_OwnerForbidden(t *testing.T) {
	server := &Server{bidService: &stubBidService{}, logger: testLogger()}

	body := strings.NewReader(`{"gigId":"g1","amount":120}`)
	req := httptest.NewRequest(http.MethodPost, "/api/bids", body)
	rec := httptest.NewRecorder()

	server.handleSubmitBid(rec, asUser(req, "u1", auth.RoleOwner))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleHire_Success(t *testing.T) {
	coord := &stubCoordinator{
		result: hiring.HireResult{
			GigID:             "g1",
			GigTitle:          "Logo",
			BidID:             "b1",
			HiredFreelancerID: "u2",
			Amount:            decimal.NewFromInt(120),
			RejectedCount:     3,
		},
	}
	server := &Server{coordinator: coord, logger: testLogger()}

	body := strings.NewReader(`{"bidId":"b1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/gigs/g1/hire", body)
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleHire(rec, asUser(req, "u1", auth.RoleOwner))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if coord.params.OwnerID != "u1" || coord.params.GigID != "g1" || coord.params.BidID != "b1" {
		t.Fatalf("unexpected hire params: %+v", coord.params)
	}

	var resp hireResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.HiredFreelancerID != "u2" || resp.RejectedCount != 3 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleHire_MissingBidID(t *testing.T) {
	coord := &stubCoordinator{}
	server := &Server{coordinator: coord, logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/api/gigs/g1/hire", strings.NewReader(`{}`))
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleHire(rec, asUser(req, "u1", auth.RoleOwner))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if coord.called {
		t.Error("coordinator must not run without a bid id")
	}
}

func TestHandleHire_AlreadyAssigned(t *testing.T) {
	server := &Server{
		coordinator: &stubCoordinator{err: hiring.ErrNotOpen},
		logger:      testLogger(),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/gigs/g1/hire", strings.NewReader(`{"bidId":"b1"}`))
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleHire(rec, asUser(req, "u1", auth.RoleOwner))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleGigBids_Forbidden(t *testing.T) {
	server := &Server{
		bidService: &stubBidService{listErr: bid.ErrForbidden},
		logger:     testLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/bids/gig/g1", nil)
	req = mux.SetURLVars(req, map[string]string{"gigId": "g1"})
	rec := httptest.NewRecorder()

	server.handleGigBids(rec, asUser(req, "u9", auth.RoleFreelancer))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRoutes_ProtectedRequiresToken(t *testing.T) {
	server := NewServer(
		&stubAuthService{verifyErr: auth.ErrInvalidToken},
		&stubGigService{},
		&stubBidService{},
		&stubCoordinator{},
		nil,
		"",
		testLogger(),
	)
	router := server.Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/gigs", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated create, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/gigs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected open listing to be public, got %d", rec.Code)
	}
}

func TestRoutes_BearerHeaderAccepted(t *testing.T) {
	gigSvc := &stubGigService{summaries: []gig.Summary{{ID: "g1", Title: "Logo", Status: gig.StatusOpen, Budget: "100"}}}
	server := NewServer(
		&stubAuthService{verifyID: "u1", verifyRol: auth.RoleOwner},
		gigSvc,
		&stubBidService{},
		&stubCoordinator{},
		nil,
		"",
		testLogger(),
	)
	router := server.Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/gigs/my-gigs", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Items []gigSummaryResponse `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "g1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestWriteServiceError_Opaque500(t *testing.T) {
	server := &Server{logger: testLogger()}
	rec := httptest.NewRecorder()

	server.writeServiceError(rec, errors.New("pool exhausted on node 3"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "node 3") {
		t.Error("internal details must not leak to the client")
	}
}
