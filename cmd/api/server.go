package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/gig"
	"gigflow/hiring"
	"gigflow/notify"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "user_id"
	ctxKeyRole   ctxKey = "role"
)

const tokenCookieName = "token"

// AuthService is the slice of auth.Service the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
	VerifyToken(tokenString string) (string, auth.Role, error)
	GenerateToken(userID string, role auth.Role) (string, error)
}

type GigService interface {
	Create(ctx context.Context, params gig.CreateParams) (gig.Gig, error)
	Update(ctx context.Context, actorID, gigID string, patch gig.UpdateParams) (gig.Gig, error)
	Delete(ctx context.Context, actorID, gigID string) error
	Details(ctx context.Context, gigID, viewerID string) (gig.Gig, []bid.Bid, error)
	ListOpen(ctx context.Context) ([]gig.Gig, error)
	Search(ctx context.Context, query string) ([]gig.Gig, error)
	ListForOwner(ctx context.Context, ownerID string) ([]gig.Summary, error)
}

type BidService interface {
	Submit(ctx context.Context, params bid.SubmitParams) (bid.Bid, error)
	ListForGig(ctx context.Context, ownerID, gigID string) ([]bid.Bid, error)
	ListForBidder(ctx context.Context, freelancerID string) ([]bid.WithGig, error)
}

type HireCoordinator interface {
	Hire(ctx context.Context, params hiring.HireParams) (hiring.HireResult, error)
}

// Server wires the domain services behind the HTTP API.
type Server struct {
	authService AuthService
	gigService  GigService
	bidService  BidService
	coordinator HireCoordinator
	hub         *notify.Hub

	clientOrigin string
	logger       *slog.Logger
}

func NewServer(authSvc AuthService, gigSvc GigService, bidSvc BidService, coordinator HireCoordinator, hub *notify.Hub, clientOrigin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		authService:  authSvc,
		gigService:   gigSvc,
		bidService:   bidSvc,
		coordinator:  coordinator,
		hub:          hub,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// Routes builds the router. The /api subtree splits into public endpoints
// and a JWT-protected subrouter.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.recoveryMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	// Public browsing. Gig detail resolves the viewer itself because the
	// bid list it embeds depends on who is asking.
	api.HandleFunc("/gigs", s.handleListGigs).Methods(http.MethodGet)
	api.HandleFunc("/gigs/search", s.handleSearchGigs).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	protected.HandleFunc("/gigs", s.handleCreateGig).Methods(http.MethodPost)
	protected.HandleFunc("/gigs/my-gigs", s.handleMyGigs).Methods(http.MethodGet)
	protected.HandleFunc("/gigs/{gigId}", s.handleUpdateGig).Methods(http.MethodPut)
	protected.HandleFunc("/gigs/{gigId}", s.handleDeleteGig).Methods(http.MethodDelete)
	protected.HandleFunc("/gigs/{gigId}/hire", s.handleHire).Methods(http.MethodPost)

	protected.HandleFunc("/bids", s.handleSubmitBid).Methods(http.MethodPost)
	protected.HandleFunc("/bids/my-bids", s.handleMyBids).Methods(http.MethodGet)
	protected.HandleFunc("/bids/gig/{gigId}", s.handleGigBids).Methods(http.MethodGet)

	protected.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	// Registered last so /gigs/search and the protected verbs match first.
	api.HandleFunc("/gigs/{gigId}", s.handleGigDetail).Methods(http.MethodGet)

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
		)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.clientOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic", slog.Any("err", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := s.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate resolves the caller from the session cookie or a bearer
// header. Browsers carry the cookie; the websocket handshake and API
// clients may use either.
func (s *Server) authenticate(r *http.Request) (string, auth.Role, error) {
	tokenString := ""
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		tokenString = cookie.Value
	}
	if tokenString == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			tokenString = after
		}
	}
	if tokenString == "" {
		return "", "", auth.ErrInvalidToken
	}
	return s.authService.VerifyToken(tokenString)
}

func requestUser(r *http.Request) (string, auth.Role) {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return userID, role
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain sentinels onto HTTP statuses. Unknown
// errors are logged and surfaced as an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gig.ErrValidation),
		errors.Is(err, bid.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, hiring.ErrBidMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, gig.ErrForbidden),
		errors.Is(err, bid.ErrForbidden),
		errors.Is(err, bid.ErrOwnGig),
		errors.Is(err, hiring.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, gig.ErrNotFound),
		errors.Is(err, bid.ErrGigNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, hiring.ErrGigNotFound),
		errors.Is(err, hiring.ErrBidNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bid.ErrDuplicate),
		errors.Is(err, bid.ErrGigNotOpen),
		errors.Is(err, gig.ErrNotOpen),
		errors.Is(err, hiring.ErrNotOpen),
		errors.Is(err, hiring.ErrBidNotPending),
		errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("unhandled service error", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
