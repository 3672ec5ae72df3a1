package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/internal/auth"
	"github.com/openexchange-hq/quicktrade/internal/fees"
	"github.com/openexchange-hq/quicktrade/internal/quicktrade"
	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// QuickTradeService defines the engine operations needed by the handler.
type QuickTradeService interface {
	GetQuote(ctx context.Context, req model.QuoteRequest, bearerToken, ip string) (*model.QuoteResponse, error)
	ExecuteOrder(ctx context.Context, userID int64, token string) (*model.ExecutionResult, error)
	CreateUserOrder(ctx context.Context, userID int64, symbol string, side model.TradeSide, size float64, orderType string, price float64) (*model.ExecutionResult, error)
	GetUserOrder(ctx context.Context, userID int64, orderID string) (*model.ExecutionResult, error)
	CancelUserOrder(ctx context.Context, userID int64, orderID string) (*model.ExecutionResult, error)
	GetUserTrades(ctx context.Context, userID int64, symbol string) ([]model.PublicTrade, error)
	SettleUserFees(ctx context.Context, userID int64) error
	UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error
}

// Handler handles HTTP API requests for quick trade operations.
type Handler struct {
	logger   *zap.Logger
	service  QuickTradeService
	verifier auth.Verifier
}

// NewHandler creates a new Handler.
func NewHandler(logger *zap.Logger, service QuickTradeService, verifier auth.Verifier) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		verifier: verifier,
	}
}

// QuoteHandler prices a conversion. Anonymous callers get a price only;
// authenticated callers also get an execution token.
func (h *Handler) QuoteHandler(c *fiber.Ctx) error {
	q := quoteQuery{
		SpendingCurrency:  c.Query("spending_currency"),
		ReceivingCurrency: c.Query("receiving_currency"),
	}
	var err error
	if q.SpendingAmount, err = queryFloat(c, "spending_amount"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if q.ReceivingAmount, err = queryFloat(c, "receiving_amount"); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := q.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp, err := h.service.GetQuote(c.Context(), model.QuoteRequest{
		SpendingCurrency:  q.SpendingCurrency,
		ReceivingCurrency: q.ReceivingCurrency,
		SpendingAmount:    q.SpendingAmount,
		ReceivingAmount:   q.ReceivingAmount,
	}, c.Get("Authorization"), c.IP())
	if err != nil {
		h.logger.Error("quicktrade.quote.failed",
			zap.String("spending_currency", q.SpendingCurrency),
			zap.String("receiving_currency", q.ReceivingCurrency),
			zap.Error(err))
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

// ExecuteHandler redeems an execution token.
func (h *Handler) ExecuteHandler(c *fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.service.ExecuteOrder(c.Context(), identity.UserID, req.Token)
	if err != nil {
		h.logger.Error("quicktrade.execute.failed",
			zap.Int64("user_id", identity.UserID),
			zap.Error(err))
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// CreateOrderHandler places a plain order on behalf of the caller.
func (h *Handler) CreateOrderHandler(c *fiber.Ctx) error {
	var req OrderCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	side := model.TradeSide(strings.ToLower(req.Side))
	res, err := h.service.CreateUserOrder(c.Context(), identity.UserID,
		strings.ToLower(req.Symbol), side, req.Size, strings.ToLower(req.Type), req.Price)
	if err != nil {
		h.logger.Error("quicktrade.create_order.failed",
			zap.Int64("user_id", identity.UserID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// GetOrderHandler fetches one of the caller's orders.
func (h *Handler) GetOrderHandler(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.service.GetUserOrder(c.Context(), identity.UserID, c.Params("order_id"))
	if err != nil {
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// CancelOrderHandler cancels one of the caller's open orders.
func (h *Handler) CancelOrderHandler(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	res, err := h.service.CancelUserOrder(c.Context(), identity.UserID, c.Params("order_id"))
	if err != nil {
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// GetTradesHandler lists the caller's trades.
func (h *Handler) GetTradesHandler(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	trades, err := h.service.GetUserTrades(c.Context(), identity.UserID, c.Query("symbol"))
	if err != nil {
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"trades": trades})
}

// SettleFeesHandler triggers fee settlement for the caller.
func (h *Handler) SettleFeesHandler(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	if err := h.service.SettleUserFees(c.Context(), identity.UserID); err != nil {
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

// UpdateConfigHandler applies an admin quick trade config change.
func (h *Handler) UpdateConfigHandler(c *fiber.Ctx) error {
	var req ConfigUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	cfg := model.QuickTradeConfig{
		Symbol: strings.ToLower(req.Symbol),
		Type:   model.QuickTradeType(strings.ToLower(req.Type)),
		Active: req.Active,
	}
	if err := h.service.UpdateQuickTradeConfig(c.Context(), cfg); err != nil {
		h.logger.Error("quicktrade.update_config.failed",
			zap.String("symbol", cfg.Symbol),
			zap.Error(err))
		return c.Status(httpStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusOK).JSON(cfg)
}

// authenticate resolves the caller identity and rejects anonymous requests.
func (h *Handler) authenticate(c *fiber.Ctx) (*auth.Identity, error) {
	bearer := c.Get("Authorization")
	if bearer == "" {
		return nil, errors.New("authorization is required")
	}
	identity, err := h.verifier.Verify(c.Context(), bearer, c.IP())
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, errors.New("authorization is required")
	}
	return identity, nil
}

func queryFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errors.New(key + " must be a number")
	}
	return &v, nil
}

// httpStatus maps engine sentinels onto HTTP status codes. Unknown errors are
// treated as internal.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, quicktrade.ErrConfigNotFound),
		errors.Is(err, quicktrade.ErrBrokerNotFound),
		errors.Is(err, quicktrade.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, quicktrade.ErrTokenExpired):
		return fiber.StatusGone
	case errors.Is(err, quicktrade.ErrInvalidSymbol),
		errors.Is(err, quicktrade.ErrUserNotRegisteredOnNetwork),
		errors.Is(err, quicktrade.ErrBrokerPaused),
		errors.Is(err, quicktrade.ErrBrokerSizeExceeded),
		errors.Is(err, quicktrade.ErrOrderCannotBeFilled),
		errors.Is(err, quicktrade.ErrCurrentPriceDeviates),
		errors.Is(err, quicktrade.ErrValueTooSmall),
		errors.Is(err, quicktrade.ErrFairPriceBroker),
		errors.Is(err, quicktrade.ErrAmountNegative),
		errors.Is(err, quicktrade.ErrTypeNotSupported),
		errors.Is(err, quicktrade.ErrPriceNotFound),
		errors.Is(err, quicktrade.ErrInvalidPrice),
		errors.Is(err, quicktrade.ErrInvalidSize),
		errors.Is(err, fees.ErrTierNotFound),
		errors.Is(err, fees.ErrInvalidDiscount):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
