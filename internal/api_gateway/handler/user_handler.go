package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/go-exchange-reconciler/internal/api_gateway/service"
	"github.com/go-exchange-reconciler/internal/domain/user"
)

// UserHandler serves a user's transaction history and balances
type UserHandler struct {
	historyService service.HistoryService
	logger         *slog.Logger
}

func NewUserHandler(logger *slog.Logger, historyService service.HistoryService) *UserHandler {
	return &UserHandler{
		historyService: historyService,
		logger:         logger,
	}
}

func (h *UserHandler) Transactions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	views, err := h.historyService.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, userID, "Failed to list transactions", err)
		return
	}

	resp := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(views))}
	for _, v := range views {
		resp.Transactions = append(resp.Transactions, mapTransactionToResponse(v))
	}
	RespondOK(c, resp)
}

func (h *UserHandler) Balances(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	balances, err := h.historyService.Balances(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, userID, "Failed to load balances", err)
		return
	}
	RespondOK(c, mapBalancesToResponse(balances))
}

func (h *UserHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Warn("Invalid user ID", "user_id", c.Param("id"), "error", err)
		RespondBadRequest(c, "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *UserHandler) respondError(c *gin.Context, userID uuid.UUID, msg string, err error) {
	if errors.Is(err, user.ErrUserNotFound{}) {
		RespondNotFound(c, "User not found")
		return
	}
	h.logger.Error(msg, "user_id", userID.String(), "error", err)
	RespondInternalError(c)
}
