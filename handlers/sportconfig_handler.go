package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencourt/tournament-backend/middleware"
	"github.com/opencourt/tournament-backend/models"
	"github.com/opencourt/tournament-backend/services"
)

type SportConfigHandler struct {
	sportConfigService *services.SportConfigService
}

func NewSportConfigHandler(scs *services.SportConfigService) *SportConfigHandler {
	return &SportConfigHandler{sportConfigService: scs}
}

// List обрабатывает GET /sports
func (h *SportConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	configs, err := h.sportConfigService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sports": configs}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBySport обрабатывает GET /sports/{sport}
func (h *SportConfigHandler) GetBySport(w http.ResponseWriter, r *http.Request) {
	sport := models.Sport(chi.URLParam(r, "sport"))
	if sport == "" {
		badRequestResponse(w, r, errors.New("sport URL parameter is required"))
		return
	}

	cfg, err := h.sportConfigService.GetBySport(r.Context(), sport)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sport": cfg}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Upsert обрабатывает PUT /sports/{sport}
func (h *SportConfigHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	sport := models.Sport(chi.URLParam(r, "sport"))
	if sport == "" {
		badRequestResponse(w, r, errors.New("sport URL parameter is required"))
		return
	}

	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var cfg models.SportConfig
	if err := readJSON(w, r, &cfg); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	cfg.Sport = sport

	updated, err := h.sportConfigService.Upsert(r.Context(), role, &cfg)
	if err != nil {
		// Ошибки валидации правил счёта приходят как обычные error.
		if errors.Is(err, services.ErrForbidden) {
			mapServiceErrorToHTTP(w, r, err)
			return
		}
		badRequestResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sport": updated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
