// Package rest provides HTTP handlers for product-related operations.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/productroom/internal/errors"
	"github.com/abgdnv/productroom/internal/service"
	applog "github.com/abgdnv/productroom/pkg/logger"
	"github.com/abgdnv/productroom/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// ProductCreateDto is the body of POST /api/v1/products.
// Quantity stays text and is coerced by the service.
type ProductCreateDto struct {
	ProductName string `json:"productName" validate:"max=255"`
	Quantity    string `json:"quantity"    validate:"max=64"`
}

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new Handler with the provided service.
func NewHandler(service service.ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   applog.Component(logger, "rest"),
	}
}

// RegisterRoutes registers the HTTP routes for the product service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.DisplayList)
		r.Post("/", h.Create)
		r.Delete("/", h.DeleteByName)
		r.Get("/all", h.FindAll)
		r.Get("/search", h.Search)
		r.Get("/stream", h.Stream)
	})

	r.Get("/healthz", h.HealthCheck)
}

// DisplayList returns what the product table currently shows.
func (h *Handler) DisplayList(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, h.service.DisplayList())
}

// FindAll returns every stored product.
func (h *Handler) FindAll(w http.ResponseWriter, r *http.Request) {
	web.RespondJSON(w, h.loggerWithReqID(r), http.StatusOK, h.service.AllProducts())
}

// Create handles the creation of a new product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var createDto ProductCreateDto
	if err := json.NewDecoder(r.Body).Decode(&createDto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !h.validateBody(w, r, mLogger, createDto) {
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to add product", "product", createDto)
	created, err := h.service.AddProduct(createDto.ProductName, createDto.Quantity).Wait(r.Context())
	if err != nil {
		h.respondTaskError(w, r, mLogger, "Failed to add product", err)
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "name", created.ProductName)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// Search makes the products named ?name= the active search and returns them.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	name, ok := web.RequiredQuery(w, r, mLogger, "name")
	if !ok {
		return
	}
	found, err := h.service.FindProduct(name).Wait(r.Context())
	if err != nil {
		h.respondTaskError(w, r, mLogger, "Failed to search products", err)
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, found)
}

// DeleteByName removes every product named ?name=.
func (h *Handler) DeleteByName(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	name, ok := web.RequiredQuery(w, r, mLogger, "name")
	if !ok {
		return
	}
	count, err := h.service.DeleteProduct(name).Wait(r.Context())
	if err != nil {
		h.respondTaskError(w, r, mLogger, "Failed to delete products", err)
		return
	}
	mLogger.InfoContext(r.Context(), "Products deleted", "name", name, "count", count)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]int64{"deleted": count})
}

// Stream sends the display list as Server-Sent Events, one event per change.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		mLogger.ErrorContext(r.Context(), "Streaming is not supported", "error", err)
		return
	}

	for products := range h.service.SubscribeDisplay(r.Context()) {
		data, err := json.Marshal(products)
		if err != nil {
			mLogger.ErrorContext(r.Context(), "Error encoding display list", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			mLogger.DebugContext(r.Context(), "Stream client went away", "error", err)
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) validateBody(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, body any) bool {
	err := h.validate.Struct(body)
	if err == nil {
		return true
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errorResponse := make(map[string]string)
		for _, fieldErr := range validationErrors {
			errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
		}
		mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
		web.RespondJSON(w, mLogger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
		return false
	}
	mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
	web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
	return false
}

func (h *Handler) respondTaskError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, message string, err error) {
	switch {
	case errors.Is(err, perrors.ErrServiceStopped):
		mLogger.WarnContext(r.Context(), "Product service is stopped", "error", err)
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, "Service is shutting down")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		mLogger.WarnContext(r.Context(), "Gave up waiting for the product service", "error", err)
		web.RespondError(w, mLogger, http.StatusGatewayTimeout, "The request timed out")
	default:
		mLogger.ErrorContext(r.Context(), message, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, message)
	}
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
