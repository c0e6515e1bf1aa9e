package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"servicehub/internal/catalog/service"
	apperrors "servicehub/pkg/errors"
	httputil "servicehub/pkg/http"
	"servicehub/pkg/logger"
	"servicehub/pkg/model"
)

type ServiceItemHandler struct {
	service service.ServiceItemService
	log     *logger.Logger
}

func NewServiceItemHandler(service service.ServiceItemService, log *logger.Logger) *ServiceItemHandler {
	return &ServiceItemHandler{
		service: service,
		log:     log,
	}
}

type categoryList struct {
	Categories []string `json:"categories"`
}

func (h *ServiceItemHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ServiceItemHandler) writeSuccess(w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *ServiceItemHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var item model.ServiceItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), &item); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, item); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ServiceItemHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	h.writeSuccess(w, "GetByID", item)
}

func (h *ServiceItemHandler) GetByCategoryAndID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := h.service.GetByCategoryAndID(r.Context(), ps.ByName("category"), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByCategoryAndID", err)
		return
	}

	h.writeSuccess(w, "GetByCategoryAndID", item)
}

func (h *ServiceItemHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	items, totalCount, err := h.service.List(r.Context(), query.Get("category"), query.Get("status"), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, items, totalCount, limit, int(offset)); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *ServiceItemHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.ServiceItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeError(w, "Update", apperrors.InvalidInput("Invalid request body"))
		return
	}

	item, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	h.writeSuccess(w, "Update", item)
}

func (h *ServiceItemHandler) Publish(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := h.service.Publish(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Publish", err)
		return
	}

	h.writeSuccess(w, "Publish", item)
}

func (h *ServiceItemHandler) Archive(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item, err := h.service.Archive(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Archive", err)
		return
	}

	h.writeSuccess(w, "Archive", item)
}

func (h *ServiceItemHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	from, err := httputil.ExtractDate(r, "from")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	days, err := httputil.ExtractInt(r, "days")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	calendar, err := h.service.Availability(r.Context(), ps.ByName("id"), from, days)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	h.writeSuccess(w, "Availability", calendar)
}

func (h *ServiceItemHandler) Quote(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var sel model.BookingSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		h.writeError(w, "Quote", apperrors.InvalidInput("Invalid request body"))
		return
	}

	quote, err := h.service.Quote(r.Context(), ps.ByName("id"), &sel)
	if err != nil {
		h.writeError(w, "Quote", err)
		return
	}

	h.writeSuccess(w, "Quote", quote)
}

func (h *ServiceItemHandler) Categories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.writeSuccess(w, "Categories", categoryList{Categories: h.service.Categories()})
}

func (h *ServiceItemHandler) Schema(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.writeSuccess(w, "Schema", h.service.Schema(ps.ByName("category")))
}

func (h *ServiceItemHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/services", h.Create)
	router.GET("/api/v1/services", h.List)
	router.GET("/api/v1/services/id/:id", h.GetByID)
	router.PATCH("/api/v1/services/id/:id", h.Update)
	router.POST("/api/v1/services/id/:id/publish", h.Publish)
	router.POST("/api/v1/services/id/:id/archive", h.Archive)
	router.GET("/api/v1/services/id/:id/availability", h.Availability)
	router.POST("/api/v1/services/id/:id/quote", h.Quote)
	router.GET("/api/v1/services/category/:category/id/:id", h.GetByCategoryAndID)

	router.GET("/api/v1/categories", h.Categories)
	router.GET("/api/v1/categories/:category/schema", h.Schema)
}
