package handlers

import (
	"context"
	"net/http"

	"github.com/opencourt/tournament-backend/middleware"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/services"
)

type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(cs *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: cs}
}

// Create обрабатывает POST /tournaments/{tournamentID}/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to create category")
		return
	}

	var input services.CreateCategoryInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	category, err := h.categoryService.Create(r.Context(), tournamentID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByID обрабатывает GET /categories/{categoryID}
func (h *CategoryHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	category, err := h.categoryService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListByTournament обрабатывает GET /tournaments/{tournamentID}/categories
func (h *CategoryHandler) ListByTournament(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	categories, err := h.categoryService.ListByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"categories": categories}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Update обрабатывает PUT /categories/{categoryID}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to update category")
		return
	}

	var input services.UpdateCategoryInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	category, err := h.categoryService.Update(r.Context(), id, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Delete обрабатывает DELETE /categories/{categoryID}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to delete category")
		return
	}

	if err := h.categoryService.Delete(r.Context(), id, currentUserID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OpenRegistration обрабатывает POST /categories/{categoryID}/open-registration
func (h *CategoryHandler) OpenRegistration(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.categoryService.OpenRegistration)
}

// StartAuction обрабатывает POST /categories/{categoryID}/start-auction
func (h *CategoryHandler) StartAuction(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.categoryService.StartAuction)
}

// ConfigureBracket обрабатывает POST /categories/{categoryID}/configure-bracket
func (h *CategoryHandler) ConfigureBracket(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.categoryService.ConfigureBracket)
}

// Start обрабатывает POST /categories/{categoryID}/start
func (h *CategoryHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.categoryService.StartCategory)
}

// Complete обрабатывает POST /categories/{categoryID}/complete
func (h *CategoryHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.categoryService.CompleteCategory)
}

func (h *CategoryHandler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, int, int) (*models.Category, error)) {
	id, err := getIDFromURL(r, "categoryID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	category, err := op(r.Context(), id, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"category": category}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
