package hierarchy

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// AssignmentService is the business contract used by the handler.
type AssignmentService interface {
	Assign(ctx context.Context, actor shared.Principal, in AssignInput) (AssignResult, error)
	Unassign(ctx context.Context, actor shared.Principal, in AssignInput) (UnassignResult, error)
	Assignments(ctx context.Context, actor shared.Principal, userID int64) ([]Assignment, error)
	Schools(ctx context.Context, actor shared.Principal, userID int64) ([]School, error)
	InScope(ctx context.Context, actor shared.Principal, level string, nodeID int64) (bool, error)
}

// Handler exposes hierarchy endpoints.
type Handler struct {
	logger    *slog.Logger
	service   AssignmentService
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service AssignmentService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers hierarchy routes. The router must already require a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/hierarchy/assign", h.handleAssign)
	r.Delete("/hierarchy/assign", h.handleUnassign)
	r.Get("/hierarchy/assignments", h.handleAssignments)
	r.Get("/hierarchy/schools", h.handleSchools)
	r.Get("/hierarchy/check", h.handleCheck)
}

type assignRequest struct {
	UserID         int64  `json:"userId" validate:"required,gt=0"`
	AssignmentType string `json:"assignmentType" validate:"required"`
	AssignmentID   int64  `json:"assignmentId" validate:"required,gt=0"`
	AssignedBy     int64  `json:"assignedBy" validate:"gte=0"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.Assign(r.Context(), actor, AssignInput{
		UserID:     req.UserID,
		Type:       req.AssignmentType,
		NodeID:     req.AssignmentID,
		AssignedBy: req.AssignedBy,
	})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.Unassign(r.Context(), actor, AssignInput{UserID: req.UserID, Type: req.AssignmentType, NodeID: req.AssignmentID})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleAssignments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	assignments, err := h.service.Assignments(r.Context(), actor, userID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (h *Handler) handleSchools(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	schools, err := h.service.Schools(r.Context(), actor, userID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schools": schools})
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	nodeID, err := strconv.ParseInt(strings.TrimSpace(query.Get("nodeId")), 10, 64)
	if err != nil || nodeID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "nodeId must be a positive integer")
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	inScope, err := h.service.InScope(r.Context(), actor, query.Get("level"), nodeID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"inScope": inScope})
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("userId"))
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "userId must be a positive integer")
		return 0, false
	}
	return id, true
}
