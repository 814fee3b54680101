package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/gig"
	"gigflow/hiring"
)

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

type ownerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gigResponse struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Budget            string   `json:"budget"`
	Status            string   `json:"status"`
	Owner             ownerRef `json:"owner"`
	HiredFreelancerID *string  `json:"hiredFreelancerId,omitempty"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

type gigSummaryResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Budget    string `json:"budget"`
	BidCount  int    `json:"bidCount"`
	CreatedAt string `json:"createdAt"`
}

type freelancerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type bidResponse struct {
	ID         string          `json:"id"`
	GigID      string          `json:"gigId"`
	Freelancer freelancerRef   `json:"freelancer"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message"`
	Status     string          `json:"status"`
	CreatedAt  string          `json:"createdAt"`
}

type bidWithGigResponse struct {
	bidResponse
	GigTitle  string `json:"gigTitle"`
	GigStatus string `json:"gigStatus"`
}

type hireResponse struct {
	GigID             string          `json:"gigId"`
	GigTitle          string          `json:"gigTitle"`
	BidID             string          `json:"bidId"`
	HiredFreelancerID string          `json:"hiredFreelancerId"`
	Amount            decimal.Decimal `json:"amount"`
	RejectedCount     int             `json:"rejectedCount"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

func toGigResponse(g gig.Gig) gigResponse {
	return gigResponse{
		ID:                g.ID,
		Title:             g.Title,
		Description:       g.Description,
		Budget:            g.Budget,
		Status:            string(g.Status),
		Owner:             ownerRef{ID: g.OwnerID, Name: g.OwnerName},
		HiredFreelancerID: g.HiredFreelancerID,
		CreatedAt:         g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         g.UpdatedAt.Format(time.RFC3339),
	}
}

func toGigResponses(gigs []gig.Gig) []gigResponse {
	out := make([]gigResponse, 0, len(gigs))
	for _, g := range gigs {
		out = append(out, toGigResponse(g))
	}
	return out
}

func toBidResponse(b bid.Bid) bidResponse {
	return bidResponse{
		ID:    b.ID,
		GigID: b.GigID,
		Freelancer: freelancerRef{
			ID:    b.FreelancerID,
			Name:  b.FreelancerName,
			Email: b.FreelancerEmail,
		},
		Amount:    b.Amount,
		Message:   b.Message,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func toBidResponses(bids []bid.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		out = append(out, toBidResponse(b))
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Registration doubles as login.
	token, err := s.authService.GenerateToken(user.ID, user.Role)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.setTokenCookie(w, token)

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserResponse(user),
		"token": token,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.setTokenCookie(w, result.Token)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  toUserResponse(&result.User),
		"token": result.Token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)

	user, err := s.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleListGigs(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.gigService.ListOpen(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toGigResponses(gigs)})
}

func (s *Server) handleSearchGigs(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.gigService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toGigResponses(gigs)})
}

func (s *Server) handleGigDetail(w http.ResponseWriter, r *http.Request) {
	gigID := mux.Vars(r)["gigId"]

	// Anonymous viewers get the gig with no bids; the bid list depends on
	// who is asking, so authentication here is best effort.
	viewerID := ""
	if userID, _, err := s.authenticate(r); err == nil {
		viewerID = userID
	}

	g, bids, err := s.gigService.Details(r.Context(), gigID, viewerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gig":  toGigResponse(g),
		"bids": toBidResponses(bids),
	})
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	if role != auth.RoleOwner {
		writeError(w, http.StatusForbidden, "only owners can post gigs")
		return
	}

	var body struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      string `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.gigService.Create(r.Context(), gig.CreateParams{
		OwnerID:     userID,
		Title:       body.Title,
		Description: body.Description,
		Budget:      body.Budget,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGigResponse(created))
}

func (s *Server) handleUpdateGig(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	gigID := mux.Vars(r)["gigId"]

	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Budget      *string `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.gigService.Update(r.Context(), userID, gigID, gig.UpdateParams{
		Title:       body.Title,
		Description: body.Description,
		Budget:      body.Budget,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGigResponse(updated))
}

func (s *Server) handleDeleteGig(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	gigID := mux.Vars(r)["gigId"]

	if err := s.gigService.Delete(r.Context(), userID, gigID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMyGigs(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)

	summaries, err := s.gigService.ListForOwner(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]gigSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, gigSummaryResponse{
			ID:        sum.ID,
			Title:     sum.Title,
			Status:    string(sum.Status),
			Budget:    sum.Budget,
			BidCount:  sum.BidCount,
			CreatedAt: sum.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	gigID := mux.Vars(r)["gigId"]

	var body struct {
		BidID string `json:"bidId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.BidID == "" {
		writeError(w, http.StatusBadRequest, "bidId is required")
		return
	}

	result, err := s.coordinator.Hire(r.Context(), hiring.HireParams{
		OwnerID: userID,
		GigID:   gigID,
		BidID:   body.BidID,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hireResponse{
		GigID:             result.GigID,
		GigTitle:          result.GigTitle,
		BidID:             result.BidID,
		HiredFreelancerID: result.HiredFreelancerID,
		Amount:            result.Amount,
		RejectedCount:     result.RejectedCount,
	})
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	userID, role := requestUser(r)
	if role != auth.RoleFreelancer {
		writeError(w, http.StatusForbidden, "only freelancers can bid")
		return
	}

	var body struct {
		GigID   string          `json:"gigId"`
		Amount  decimal.Decimal `json:"amount"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.bidService.Submit(r.Context(), bid.SubmitParams{
		GigID:        body.GigID,
		FreelancerID: userID,
		Amount:       body.Amount,
		Message:      body.Message,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBidResponse(created))
}

func (s *Server) handleMyBids(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)

	bids, err := s.bidService.ListForBidder(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	items := make([]bidWithGigResponse, 0, len(bids))
	for _, b := range bids {
		items = append(items, bidWithGigResponse{
			bidResponse: toBidResponse(b.Bid),
			GigTitle:    b.GigTitle,
			GigStatus:   b.GigStatus,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleGigBids(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	gigID := mux.Vars(r)["gigId"]

	bids, err := s.bidService.ListForGig(r.Context(), userID, gigID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toBidResponses(bids)})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUser(r)
	s.hub.HandleWS(w, r, userID)
}
