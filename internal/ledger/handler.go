package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lodestar-erp/lodestar-erp/internal/platform/httpx"
	"github.com/lodestar-erp/lodestar-erp/internal/shared"
)

// IdempotencyGuard is the subset of the shared idempotency store the handler
// uses to deduplicate creates. Delete releases a claimed key when the guarded
// operation fails, so the client can retry with the same key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	idempotency IdempotencyGuard
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, idempotency IdempotencyGuard) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validate:    validator.New(),
		idempotency: idempotency,
	}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.handleList)
	r.Post("/transactions", h.handleCreate)
	r.Get("/transactions/{id}", h.handleGet)
	r.Post("/transactions/{id}/approve", h.handleApprove)
	r.Post("/transactions/{id}/cancel", h.handleCancel)
	r.Delete("/transactions/{id}", h.handleDelete)
	r.Get("/stock", h.handleStockLevels)
}

type createItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  string `json:"quantity" validate:"required"`
}

type createTransactionRequest struct {
	Type            string              `json:"transaction_type" validate:"required,oneof=inbound outbound transfer count"`
	WarehouseID     string              `json:"warehouse_id" validate:"omitempty,uuid"`
	FromWarehouseID string              `json:"from_warehouse_id" validate:"omitempty,uuid"`
	ToWarehouseID   string              `json:"to_warehouse_id" validate:"omitempty,uuid"`
	Note            string              `json:"note" validate:"max=500"`
	Items           []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

type lineItemResponse struct {
	ID        int64           `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type transactionResponse struct {
	ID              uuid.UUID          `json:"id"`
	Type            TransactionType    `json:"transaction_type"`
	Status          Status             `json:"status"`
	WarehouseID     *uuid.UUID         `json:"warehouse_id,omitempty"`
	FromWarehouseID *uuid.UUID         `json:"from_warehouse_id,omitempty"`
	ToWarehouseID   *uuid.UUID         `json:"to_warehouse_id,omitempty"`
	Note            string             `json:"note,omitempty"`
	ApprovedBy      *uuid.UUID         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Items           []lineItemResponse `json:"items,omitempty"`
}

type balanceResponse struct {
	ProductID         uuid.UUID       `json:"product_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	ReservedQuantity  decimal.Decimal `json:"reserved_quantity"`
	LastTransactionAt *time.Time      `json:"last_transaction_date,omitempty"`
}

type listResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Pagination   shared.Pagination     `json:"pagination"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.IdentityFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "company context not resolved")
		return
	}

	var req createTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := buildCreateInput(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	idemKey := ""
	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idempotency != nil {
		idemKey = actor.CompanyID.String() + ":" + key
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "ledger"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate", "request already processed")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	trans, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		// Nothing was created; release the key so a retry can succeed.
		if idemKey != "" {
			if derr := h.idempotency.Delete(r.Context(), idemKey); derr != nil {
				h.logger.Error("idempotency key rollback", slog.Any("error", derr))
			}
		}
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("transaction created",
		slog.String("transaction_id", trans.ID.String()),
		slog.String("type", string(trans.Type)),
		slog.Int("line_items", len(trans.Items)))
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(trans))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.IdentityFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "company context not resolved")
		return
	}
	filter := parseListFilter(r)
	transactions, total, err := h.service.List(r.Context(), actor.CompanyID, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := listResponse{
		Transactions: make([]transactionResponse, 0, len(transactions)),
		Pagination:   shared.NewPagination(filter.Page, filter.PerPage, total),
	}
	for _, trans := range transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(trans))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	trans, err := h.service.Get(r.Context(), actor.CompanyID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(trans))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Approve(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("transaction approved", slog.String("transaction_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("transaction cancelled", slog.String("transaction_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Info("transaction deleted", slog.String("transaction_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStockLevels(w http.ResponseWriter, r *http.Request) {
	actor, err := shared.IdentityFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "company context not resolved")
		return
	}
	var filter BalanceFilter
	if v := r.URL.Query().Get("warehouse_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse_id")
			return
		}
		filter.WarehouseID = id
	}
	if v := r.URL.Query().Get("product_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	balances, err := h.service.StockLevels(r.Context(), actor.CompanyID, filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]balanceResponse, 0, len(balances))
	for _, bal := range balances {
		entry := balanceResponse{
			ProductID:        bal.ProductID,
			WarehouseID:      bal.WarehouseID,
			Quantity:         bal.Quantity,
			ReservedQuantity: bal.ReservedQuantity,
		}
		if !bal.LastTransactionAt.IsZero() {
			t := bal.LastTransactionAt
			entry.LastTransactionAt = &t
		}
		resp = append(resp, entry)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) identityAndID(w http.ResponseWriter, r *http.Request) (shared.Identity, uuid.UUID, bool) {
	actor, err := shared.IdentityFromContext(r.Context())
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "company context not resolved")
		return shared.Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return shared.Identity{}, uuid.Nil, false
	}
	return actor, id, true
}

// respondError maps ledger errors to problem responses in domain terms.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "transaction not found")
	case errors.Is(err, ErrAlreadyCompleted):
		httpx.Problem(w, http.StatusConflict, "Already Completed", "transaction is already completed")
	case errors.Is(err, ErrTransactionCancelled):
		httpx.Problem(w, http.StatusConflict, "Cancelled", "a cancelled transaction cannot be approved")
	case errors.Is(err, ErrCancelCompleted):
		httpx.Problem(w, http.StatusConflict, "Cannot Cancel", "a completed transaction must be reversed via delete")
	case errors.Is(err, ErrDeleteCountTransaction):
		httpx.Problem(w, http.StatusConflict, "Cannot Delete", "count transactions cannot be deleted, record a corrective count")
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", "stock quantity cannot be negative")
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrWarehouseRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger operation failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func buildCreateInput(req createTransactionRequest) (CreateInput, error) {
	input := CreateInput{Type: TransactionType(req.Type), Note: req.Note}
	var err error
	if input.WarehouseID, err = parseOptionalUUID(req.WarehouseID); err != nil {
		return CreateInput{}, err
	}
	if input.FromWarehouseID, err = parseOptionalUUID(req.FromWarehouseID); err != nil {
		return CreateInput{}, err
	}
	if input.ToWarehouseID, err = parseOptionalUUID(req.ToWarehouseID); err != nil {
		return CreateInput{}, err
	}
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return CreateInput{}, errors.New("invalid product id")
		}
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			return CreateInput{}, errors.New("invalid quantity")
		}
		if qty.Sign() <= 0 {
			return CreateInput{}, ErrInvalidQuantity
		}
		input.Items = append(input.Items, LineInput{ProductID: productID, Quantity: qty})
	}
	return input, nil
}

func parseOptionalUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(value)
}

func parseListFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{
		Status: Status(q.Get("status")),
		Type:   TransactionType(q.Get("transaction_type")),
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil && perPage > 0 {
		filter.PerPage = perPage
	}
	return filter
}

func toTransactionResponse(trans Transaction) transactionResponse {
	resp := transactionResponse{
		ID:        trans.ID,
		Type:      trans.Type,
		Status:    trans.Status,
		Note:      trans.Note,
		CreatedAt: trans.CreatedAt,
		UpdatedAt: trans.UpdatedAt,
	}
	if trans.WarehouseID != uuid.Nil {
		id := trans.WarehouseID
		resp.WarehouseID = &id
	}
	if trans.FromWarehouseID != uuid.Nil {
		id := trans.FromWarehouseID
		resp.FromWarehouseID = &id
	}
	if trans.ToWarehouseID != uuid.Nil {
		id := trans.ToWarehouseID
		resp.ToWarehouseID = &id
	}
	if trans.ApprovedBy != uuid.Nil {
		id := trans.ApprovedBy
		resp.ApprovedBy = &id
	}
	if !trans.ApprovedAt.IsZero() {
		t := trans.ApprovedAt
		resp.ApprovedAt = &t
	}
	for _, item := range trans.Items {
		resp.Items = append(resp.Items, lineItemResponse{ID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return resp
}
