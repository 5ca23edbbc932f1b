package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/backend"
	"storefront-service/internal/cart"
	"storefront-service/internal/models"
	"storefront-service/internal/orders"
	"storefront-service/internal/util"
)

// Step identifies the checkout state machine's position.
type Step int

const (
	StepContact Step = iota
	StepShippingAddress
	StepDeliveryMethod
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepContact:
		return "contact"
	case StepShippingAddress:
		return "shipping_address"
	case StepDeliveryMethod:
		return "delivery_method"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// ErrSubmissionInFlight guards against duplicate submissions from rapid
// repeated requests while an async step is still resolving.
var ErrSubmissionInFlight = errors.New("a checkout step is already in flight")

// Machine is the forward-only checkout orchestrator:
// Contact → ShippingAddress → DeliveryMethod → Review, with Back as the
// implicit reverse transition. Each failed validation sets a single
// user-visible error and blocks the transition; there is no partial
// advancement.
type Machine struct {
	mu sync.Mutex

	taxRate decimal.Decimal
	cart    *cart.Manager
	store   *orders.Store
	backend *backend.Client
	logger  *zap.Logger

	step     Step
	inFlight bool
	stepErr  string

	contact         models.ContactInfo
	createAccount   bool
	password        string
	confirmPassword string
	authenticated   bool
	userID          string
	isNewUser       bool

	shippingAddr models.Address
	billingAddr  *models.Address

	method *models.ShippingMethod

	fromCart bool
	buyNow   *models.CartLineItem

	discount     decimal.Decimal
	freeShipping bool
}

// NewMachine builds a checkout session over the given cart. A non-empty
// userID marks the session as authenticated, which disables the guest
// registration sub-flow.
func NewMachine(taxRate float64, cartMgr *cart.Manager, store *orders.Store, bc *backend.Client, userID string) *Machine {
	return &Machine{
		taxRate:  decimal.NewFromFloat(taxRate),
		cart:     cartMgr,
		store:    store,
		backend:  bc,
		logger:   util.GetLogger(),
		step:     StepContact,
		fromCart: true,

		authenticated: userID != "",
		userID:        userID,
		discount:      decimal.Zero,
	}
}

func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// Err returns the current step's user-visible error, if any.
func (m *Machine) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepErr
}

// SetContact records the contact step's input, including the optional
// create-account sub-flow toggle.
func (m *Machine) SetContact(info models.ContactInfo, createAccount bool, password, confirmPassword string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contact = info
	m.createAccount = createAccount
	m.password = password
	m.confirmPassword = confirmPassword
}

func (m *Machine) SetShippingAddress(addr models.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shippingAddr = addr
}

// SetBillingAddress overrides the billing address; nil means same as
// shipping.
func (m *Machine) SetBillingAddress(addr *models.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.billingAddr = addr
}

// SelectShippingMethod picks a delivery method from the fixed catalog.
func (m *Machine) SelectShippingMethod(id string) bool {
	method, ok := models.ShippingMethodByID(id)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.method = &method
	return true
}

// SetBuyNow switches the session to single-item mode, bypassing the cart.
func (m *Machine) SetBuyNow(item models.CartLineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	m.buyNow = &item
	m.fromCart = false
}

// Subtotal is the session's effective merchandise subtotal: the buy-now
// line in single-item mode, the cart total otherwise. Coupon minimums and
// percentage discounts are evaluated against this value.
func (m *Machine) Subtotal() decimal.Decimal {
	m.mu.Lock()
	fromCart, buyNow := m.fromCart, m.buyNow
	m.mu.Unlock()

	if !fromCart {
		if buyNow == nil {
			return decimal.Zero
		}
		return buyNow.Price.Mul(decimal.NewFromInt(int64(buyNow.Quantity)))
	}
	return m.cart.Total()
}

// ApplyDiscount installs an externally evaluated discount (see the coupon
// package). The discount is tracked as UI state until checkout completes.
func (m *Machine) ApplyDiscount(amount decimal.Decimal, freeShipping bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discount = amount
	m.freeShipping = freeShipping
}

// Back steps to the previous state. Returns false when already on the first
// step, signalling the caller to exit checkout back to the cart or product.
func (m *Machine) Back() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepErr = ""
	if m.step == StepContact {
		return false
	}
	m.step--
	return true
}

// Next validates the current step and advances. Leaving the shipping-address
// step with the create-account toggle on runs guest registration first;
// registration failure blocks the transition with a field-level error.
func (m *Machine) Next(ctx context.Context) error {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return ErrSubmissionInFlight
	}
	m.inFlight = true
	step := m.step
	m.mu.Unlock()

	err := m.advance(ctx, step)

	m.mu.Lock()
	m.inFlight = false
	if err != nil {
		m.stepErr = err.Error()
		util.CheckoutStepFailuresTotal.WithLabelValues(step.String()).Inc()
	} else {
		m.stepErr = ""
		if m.step < StepReview {
			m.step++
		}
	}
	m.mu.Unlock()
	return err
}

func (m *Machine) advance(ctx context.Context, step Step) error {
	switch step {
	case StepContact:
		return m.validateContact()
	case StepShippingAddress:
		if err := m.validateShippingAddress(); err != nil {
			return err
		}
		return m.maybeRegisterGuest(ctx)
	case StepDeliveryMethod:
		return m.validateDeliveryMethod()
	case StepReview:
		// Review adds no input; submission is explicit via Submit.
		return nil
	default:
		return errors.New("unknown checkout step")
	}
}

func (m *Machine) validateContact() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(m.contact.Email) == "" {
		return errors.New("Email is required")
	}
	if strings.TrimSpace(m.contact.Phone) == "" {
		return errors.New("Phone number is required")
	}
	return nil
}

func (m *Machine) validateShippingAddress() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.shippingAddr
	switch {
	case strings.TrimSpace(a.FirstName) == "":
		return errors.New("First name is required")
	case strings.TrimSpace(a.LastName) == "":
		return errors.New("Last name is required")
	case strings.TrimSpace(a.Address1) == "":
		return errors.New("Address is required")
	case strings.TrimSpace(a.City) == "":
		return errors.New("City is required")
	case strings.TrimSpace(a.State) == "":
		return errors.New("State is required")
	case strings.TrimSpace(a.PostalCode) == "":
		return errors.New("Postal code is required")
	case strings.TrimSpace(a.Country) == "":
		return errors.New("Country is required")
	case !models.IsSupportedCountry(a.Country):
		return errors.New("We do not ship to this country yet")
	}
	return nil
}

func (m *Machine) maybeRegisterGuest(ctx context.Context) error {
	m.mu.Lock()
	if !m.createAccount || m.authenticated {
		m.mu.Unlock()
		return nil
	}
	password, confirm := m.password, m.confirmPassword
	req := backend.RegisterRequest{
		FirstName:   m.shippingAddr.FirstName,
		LastName:    m.shippingAddr.LastName,
		Email:       m.contact.Email,
		PhoneNumber: m.contact.Phone,
		Password:    password,
	}
	m.mu.Unlock()

	if password != confirm {
		return errors.New("Passwords do not match")
	}
	if len(password) < 6 {
		return errors.New("Password must be at least 6 characters")
	}

	resp, err := m.backend.Register(ctx, req)
	if err != nil {
		m.logger.Warn("Guest registration failed", zap.Error(err))
		return errors.New("Could not create your account, please try again")
	}

	m.mu.Lock()
	m.authenticated = true
	m.isNewUser = true
	m.userID = resp.UserID
	m.mu.Unlock()

	m.logger.Info("Guest registered during checkout", zap.String("user_id", resp.UserID))
	return nil
}

func (m *Machine) validateDeliveryMethod() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.method == nil {
		return errors.New("Please select a delivery method")
	}
	return nil
}

// Submit finalizes the checkout: builds the order draft, writes it into the
// order store as both the current draft and a Draft-status order, and returns
// it for the payment step. Only valid at the review step; an empty order
// aborts with a form-level error and never reaches payment.
func (m *Machine) Submit(ctx context.Context) (*models.OrderDraft, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.Submit")
	defer span.End()

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if m.step != StepReview {
		m.mu.Unlock()
		return nil, errors.New("checkout is not ready for submission")
	}
	m.inFlight = true
	m.mu.Unlock()

	draft, err := m.buildDraft()

	m.mu.Lock()
	m.inFlight = false
	if err != nil {
		m.stepErr = err.Error()
	} else {
		m.stepErr = ""
	}
	m.mu.Unlock()
	if err != nil {
		util.CheckoutStepFailuresTotal.WithLabelValues(StepReview.String()).Inc()
		return nil, err
	}

	m.store.SetOrderInfo(ctx, draft)
	m.store.AddOrder(ctx, draftOrder(draft))
	util.CheckoutSubmissionsTotal.Inc()

	m.logger.Info("Checkout submitted",
		zap.String("order_number", draft.OrderNumber),
		zap.String("total", draft.Total.StringFixed(2)))
	return draft, nil
}
