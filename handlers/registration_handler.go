package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/opencourt/tournament-backend/middleware"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/repositories"
	"github.com/opencourt/tournament-backend/services"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
	assignmentService   *services.AssignmentService
}

func NewRegistrationHandler(rs *services.RegistrationService, as *services.AssignmentService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: rs,
		assignmentService:   as,
	}
}

// Register обрабатывает POST /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to register")
		return
	}

	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.CategoryID <= 0 {
		badRequestResponse(w, r, errors.New("category_id is required"))
		return
	}

	registration, err := h.registrationService.Register(r.Context(), tournamentID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByID обрабатывает GET /registrations/{registrationID}
func (h *RegistrationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.registrationService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMine обрабатывает GET /registrations/mine
func (h *RegistrationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registrations, err := h.registrationService.MyRegistrations(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByTournament обрабатывает GET /tournaments/{tournamentID}/registrations
func (h *RegistrationHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var filter repositories.ListRegistrationsFilter
	query := r.URL.Query()
	if categoryIDStr := query.Get("category_id"); categoryIDStr != "" {
		if id, err := strconv.Atoi(categoryIDStr); err == nil && id > 0 {
			filter.CategoryID = &id
		} else {
			badRequestResponse(w, r, errors.New("invalid category_id query parameter"))
			return
		}
	}
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.RegistrationStatus(statusStr)
		filter.Status = &status
	}
	if teamIDStr := query.Get("team_id"); teamIDStr != "" {
		if id, err := strconv.Atoi(teamIDStr); err == nil && id > 0 {
			filter.TeamID = &id
		} else {
			badRequestResponse(w, r, errors.New("invalid team_id query parameter"))
			return
		}
	}

	registrations, err := h.registrationService.ListByTournament(r.Context(), tournamentID, currentUserID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByCategory обрабатывает GET /categories/{categoryID}/registrations
func (h *RegistrationHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrations, err := h.registrationService.ListByCategory(r.Context(), categoryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AuctionPool обрабатывает GET /categories/{categoryID}/auction-pool
func (h *RegistrationHandler) AuctionPool(w http.ResponseWriter, r *http.Request) {
	categoryID, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrations, err := h.registrationService.AvailableForAuction(r.Context(), categoryID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registrations": registrations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Withdraw обрабатывает POST /registrations/{registrationID}/withdraw
func (h *RegistrationHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registration, err := h.registrationService.Withdraw(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Approve обрабатывает POST /registrations/{registrationID}/approve
func (h *RegistrationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registrationService.Approve)
}

// Reject обрабатывает POST /registrations/{registrationID}/reject
func (h *RegistrationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.registrationService.Reject)
}

func (h *RegistrationHandler) decide(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, userID int) (*models.Registration, error)) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registration, err := op(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BulkApprove обрабатывает POST /tournaments/{tournamentID}/registrations/bulk-approve
func (h *RegistrationHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		RegistrationIDs []int `json:"registration_ids"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if len(input.RegistrationIDs) == 0 {
		badRequestResponse(w, r, errors.New("registration_ids must not be empty"))
		return
	}

	results, err := h.registrationService.BulkApprove(r.Context(), tournamentID, currentUserID, input.RegistrationIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"results": results}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AssignViaAuction обрабатывает POST /registrations/{registrationID}/auction-assign
func (h *RegistrationHandler) AssignViaAuction(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		TeamID    int `json:"team_id"`
		SoldPrice int `json:"sold_price"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TeamID <= 0 {
		badRequestResponse(w, r, errors.New("team_id is required"))
		return
	}

	registration, err := h.assignmentService.AssignViaAuction(r.Context(), id, input.TeamID, input.SoldPrice, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ManualAssign обрабатывает POST /registrations/{registrationID}/assign
func (h *RegistrationHandler) ManualAssign(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		TeamID int `json:"team_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TeamID <= 0 {
		badRequestResponse(w, r, errors.New("team_id is required"))
		return
	}

	registration, err := h.assignmentService.ManualAssign(r.Context(), id, input.TeamID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Unassign обрабатывает POST /registrations/{registrationID}/unassign
func (h *RegistrationHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	registration, err := h.assignmentService.Unassign(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadPhoto обрабатывает POST /registrations/{registrationID}/photo
func (h *RegistrationHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "registrationID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, errors.New("failed to parse multipart form"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		badRequestResponse(w, r, errors.New("photo file is required"))
		return
	}
	defer file.Close()

	registration, err := h.registrationService.UploadPhoto(r.Context(), id, currentUserID, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
