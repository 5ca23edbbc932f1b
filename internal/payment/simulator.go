package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/orders"
	"storefront-service/internal/util"
)

// Method enumerates the simulated settlement channels.
type Method string

const (
	MethodCard         Method = "card"
	MethodMobileMoney  Method = "mobile_money"
	MethodBankTransfer Method = "bank_transfer"
)

// CardDetails is the card form input.
type CardDetails struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

// MobileMoneyDetails is the mobile-money form input.
type MobileMoneyDetails struct {
	Phone   string `json:"phone"`
	Network string `json:"network"`
}

// Request is one payment attempt against the current order draft.
type Request struct {
	OrderNumber string             `json:"orderNumber"`
	Method      Method             `json:"method"`
	Card        CardDetails        `json:"card,omitempty"`
	MobileMoney MobileMoneyDetails `json:"mobileMoney,omitempty"`
}

// Result is the attempt outcome. State follows
// idle → processing → success|error|pending; pending is the bank-transfer
// terminal state until the transfer is confirmed out of band.
type Result struct {
	State         string          `json:"state"`
	TransactionID string          `json:"transactionId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Error         string          `json:"error,omitempty"`
	Instructions  string          `json:"instructions,omitempty"`
}

var (
	cardNumberRe = regexp.MustCompile(`^\d{16}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// Simulator fakes payment settlement. No gateway is contacted; validation and
// latency are simulated, a synthetic transaction reference is minted, and the
// shared finalize routine updates the order store. The input/output contract
// (amount, method, resulting transaction id) is what the rest of the pipeline
// depends on — a real gateway integration replaces only the internals.
type Simulator struct {
	store      *orders.Store
	publisher  *broker.EventPublisher
	logger     *zap.Logger
	minLatency time.Duration
	maxLatency time.Duration
}

func NewSimulator(store *orders.Store, pub *broker.EventPublisher, minLatency, maxLatency time.Duration) *Simulator {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &Simulator{
		store:      store,
		publisher:  pub,
		logger:     util.GetLogger(),
		minLatency: minLatency,
		maxLatency: maxLatency,
	}
}

// Process runs one payment attempt for the current order draft.
func (s *Simulator) Process(ctx context.Context, req Request) (Result, error) {
	ctx, span := util.StartSpan(ctx, "PaymentSimulator.Process")
	defer span.End()

	util.PaymentAttemptsTotal.WithLabelValues(string(req.Method)).Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	draft := s.store.OrderInfo()
	if draft == nil {
		return Result{State: models.PaymentStatusError, Error: "no order to pay for"}, errors.New("no order draft in store")
	}

	if err := validate(req); err != nil {
		util.PaymentFailedTotal.Inc()
		s.store.SetPaymentStatus(ctx, models.PaymentStatusError)
		return Result{State: models.PaymentStatusError, Error: err.Error()}, nil
	}

	s.store.SetPaymentStatus(ctx, models.PaymentStatusProcessing)
	s.simulateLatency(ctx)

	amount := recomputeAmount(draft)
	txID := "TXN-" + strings.ToUpper(uuid.New().String()[:8])

	finalState := models.PaymentStatusSuccess
	instructions := ""
	if req.Method == MethodBankTransfer {
		// Bank transfers settle out of band; the attempt parks as pending
		// with the reference the customer quotes on the transfer.
		finalState = models.PaymentStatusPending
		instructions = fmt.Sprintf("Transfer %s quoting reference %s", amount.StringFixed(2), txID)
	}

	s.finalize(ctx, draft, req, txID, finalState)

	if finalState == models.PaymentStatusSuccess {
		util.PaymentSuccessTotal.Inc()
		s.logger.Info("Payment settled",
			zap.String("order_number", draft.OrderNumber),
			zap.String("tx_id", txID),
			zap.String("method", string(req.Method)))
	} else {
		s.logger.Info("Payment pending",
			zap.String("order_number", draft.OrderNumber),
			zap.String("tx_id", txID))
	}

	return Result{
		State:         finalState,
		TransactionID: txID,
		Amount:        amount,
		Instructions:  instructions,
	}, nil
}

func validate(req Request) error {
	switch req.Method {
	case MethodCard:
		digits := strings.ReplaceAll(req.Card.Number, " ", "")
		switch {
		case !cardNumberRe.MatchString(digits):
			return errors.New("Card number must be 16 digits")
		case strings.TrimSpace(req.Card.Holder) == "":
			return errors.New("Cardholder name is required")
		case !expiryRe.MatchString(req.Card.Expiry):
			return errors.New("Expiry must be in MM/YY format")
		case !cvvRe.MatchString(req.Card.CVV):
			return errors.New("CVV is invalid")
		}
	case MethodMobileMoney:
		switch {
		case strings.TrimSpace(req.MobileMoney.Phone) == "":
			return errors.New("Mobile money phone number is required")
		case strings.TrimSpace(req.MobileMoney.Network) == "":
			return errors.New("Please select a mobile network")
		}
	case MethodBankTransfer:
		// nothing to validate; instructions are shown instead
	default:
		return errors.New("Unsupported payment method")
	}
	return nil
}

// recomputeAmount rebuilds the charge total defensively from the draft's
// components instead of trusting the stored total.
func recomputeAmount(d *models.OrderDraft) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range d.Items {
		price := it.Price
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	total := subtotal.Add(d.Shipping).Add(d.Tax).Sub(d.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total
}

// finalize writes the attempt outcome into the order store: payment status on
// the store itself, and payment details plus a status flip on the draft order
// record.
func (s *Simulator) finalize(ctx context.Context, draft *models.OrderDraft, req Request, txID, state string) {
	s.store.SetPaymentStatus(ctx, state)

	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = draft.OrderNumber
	}
	order := s.store.OrderByNumber(orderNumber)
	if order == nil {
		s.logger.Warn("No draft order found for payment", zap.String("order_number", orderNumber))
		return
	}

	patch := map[string]interface{}{
		"paymentMethod": string(req.Method),
		"paymentDetails": map[string]interface{}{
			"transactionId": txID,
			"status":        state,
		},
	}
	if req.Method == MethodCard {
		digits := strings.ReplaceAll(req.Card.Number, " ", "")
		if len(digits) >= 4 {
			patch["paymentDetails"].(map[string]interface{})["cardLast4"] = digits[len(digits)-4:]
		}
	}
	if state == models.PaymentStatusSuccess {
		patch["status"] = models.OrderStatusProcessing
	} else if state == models.PaymentStatusPending {
		patch["status"] = models.OrderStatusPending
	}

	s.store.UpdateOrder(ctx, order.ID, patch)
	s.publisher.PublishPaymentCompleted(ctx, order.ID, txID, string(req.Method), state)
}

func (s *Simulator) simulateLatency(ctx context.Context) {
	if s.maxLatency <= 0 {
		return
	}
	span := s.maxLatency - s.minLatency
	delay := s.minLatency
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
