package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dukerupert/gyan/internal/billing"
	"github.com/dukerupert/gyan/internal/cart"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
	"github.com/dukerupert/gyan/internal/notify"
	"github.com/dukerupert/gyan/internal/order"
	"github.com/dukerupert/gyan/internal/promotion"
	"github.com/dukerupert/gyan/internal/telemetry"
)

// mockMailer records confirmation mails.
type mockMailer struct {
	mu       sync.Mutex
	orders   []*domain.Order
	receipts [][]byte
	err      error
}

func (m *mockMailer) SendOrderConfirmation(_ context.Context, o *domain.Order, receipt []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	m.receipts = append(m.receipts, receipt)
	return nil
}

// flakyStore honours context cancellation the way the networked backends
// do, and can be told to fail writes to the order log.
type flakyStore struct {
	*kvstore.MemoryStore
	failOrders atomic.Bool
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if err := s.check(ctx, key); err != nil {
		return "", err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *flakyStore) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == order.Key && s.failOrders.Load() {
		return errors.New("store unavailable")
	}
	return nil
}

type fixture struct {
	svc     *Service
	kv      *flakyStore
	carts   *cart.Store
	orders  *order.Log
	events  *telemetry.EventLog
	gateway *billing.MockGateway
	notes   *notify.Recorder
	nav     *notify.NavRecorder
	metrics *telemetry.CheckoutMetrics
	mailer  *mockMailer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	kv := &flakyStore{MemoryStore: kvstore.NewMemoryStore()}
	carts := cart.NewStore(kv)
	orders := order.NewLog(kv)
	metrics := telemetry.NewCheckoutMetrics("test", prometheus.NewRegistry())
	f := &fixture{
		kv:      kv,
		carts:   carts,
		orders:  orders,
		events:  telemetry.NewEventLog(kv, AnalyticsPage),
		gateway: billing.NewMockGateway(ctrl),
		notes:   notify.NewRecorder(),
		nav:     notify.NewNavRecorder(),
		metrics: metrics,
		mailer:  &mockMailer{},
	}

	svc, err := NewService(Config{
		Carts:     carts,
		Store:     kv,
		Orders:    orders,
		Finalizer: order.NewFinalizer(orders, carts, metrics, nil),
		Gateway:   f.gateway,
		Validator: fixedValidator(),
		Notifier:  f.notes,
		Navigator: f.nav,
		Events:    f.events,
		Metrics:   metrics,
		Mailer:    f.mailer,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

// toPayment fills the cart and walks the wizard to the payment step.
func (f *fixture) toPayment(t *testing.T, promo string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "kundli.jpg")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)
	if promo != "" {
		_, err = f.svc.ApplyPromotion(ctx, promo)
		require.NoError(t, err)
	}
	_, err = f.svc.Advance(ctx)
	require.NoError(t, err)
	_, err = f.svc.SetCustomer(ctx, validCustomer())
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx)
	require.NoError(t, err)
	_, err = f.svc.SelectPaymentMethod(ctx, domain.PaymentUPI)
	require.NoError(t, err)
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	events, err := f.events.Events(context.Background())
	require.NoError(t, err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestService_AddItemNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	last, _ := f.notes.Last()
	assert.Equal(t, "Service added to cart!", last.Text)

	c, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	last, _ = f.notes.Last()
	assert.Equal(t, "Item quantity updated in cart!", last.Text)
	assert.Equal(t, 2, c.Items[0].Quantity)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CartMutations.WithLabelValues("add")))
}

func TestService_Begin_EmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Begin(context.Background())
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Equal(t, notify.PageServices, f.nav.Last())

	last, ok := f.notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Severity)
}

func TestService_Begin_CorruptCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.kv.Set(ctx, cart.Key, "][garbage"))

	_, err := f.svc.Begin(ctx)
	assert.ErrorIs(t, err, ErrCartEmpty)
	assert.Equal(t, notify.PageServices, f.nav.Last())
}

func TestService_NotStarted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.View(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = f.svc.Advance(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestService_Begin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)

	view, err := f.svc.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepReviewCart, view.Step)
	assert.Equal(t, "review_cart", view.StepName)
	assert.Equal(t, int64(1416), view.Pricing.Total)
	assert.Equal(t, notify.PageCheckout, f.nav.Last())
	assert.Contains(t, f.eventTypes(t), "checkout_started")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CheckoutStarted))
}

func TestService_Advance_ValidationFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx)
	require.NoError(t, err)

	c := validCustomer()
	c.Phone = ""
	_, err = f.svc.SetCustomer(ctx, c)
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx)
	require.Error(t, err)
	assert.Contains(t, domain.GetValidationFields(err), "phone")

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCustomerDetails, view.Step)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ValidationFailed.WithLabelValues("customer_details")))
	assert.Contains(t, f.eventTypes(t), "validation_failed")
}

func TestService_ApplyPromotion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)

	view, err := f.svc.ApplyPromotion(ctx, "first20")
	require.NoError(t, err)
	assert.Equal(t, int64(1133), view.Pricing.Total)
	last, _ := f.notes.Last()
	assert.Equal(t, "Promo code FIRST20 applied! You saved ₹240.", last.Text)

	raw, err := f.kv.Get(ctx, PromotionKey)
	require.NoError(t, err)
	assert.Equal(t, "FIRST20", raw)

	_, err = f.svc.ApplyPromotion(ctx, "ASTRO15")
	assert.ErrorIs(t, err, promotion.ErrAlreadyApplied)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PromoRejected.WithLabelValues("already_applied")))
}

func TestService_PromotionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)
	_, err = f.svc.ApplyPromotion(ctx, "FIRST20")
	require.NoError(t, err)

	view, err := f.svc.Begin(ctx)
	require.NoError(t, err)
	require.NotNil(t, view.Promotion)
	assert.Equal(t, "FIRST20", view.Promotion.Code)
	assert.Equal(t, int64(240), view.Pricing.Discount)
}

func TestService_UnknownStoredPromotionDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.kv.Set(ctx, PromotionKey, "DIWALI99"))

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	view, err := f.svc.Begin(ctx)
	require.NoError(t, err)
	assert.Nil(t, view.Promotion)

	_, err = f.kv.Get(ctx, PromotionKey)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestService_AddItemAfterCorruptCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.kv.Set(ctx, cart.Key, "][garbage"))

	c, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
	last, _ := f.notes.Last()
	assert.Equal(t, "Service added to cart!", last.Text)
}

func TestService_RemoveLastItemDuringReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)

	c, err := f.svc.UpdateQuantity(ctx, "kundli", 0)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, notify.PageServices, f.nav.Last())

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	_, err = f.svc.Advance(ctx)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("cart"))
}

func TestService_Pay_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "FIRST20")

	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req billing.ChargeRequest) (*billing.PaymentResult, error) {
			assert.Equal(t, int64(1133), req.Amount)
			assert.Equal(t, domain.PaymentUPI, req.Method)
			assert.Equal(t, "asha@example.com", req.CustomerEmail)
			assert.NotEmpty(t, req.IdempotencyKey)
			return &billing.PaymentResult{Success: true, PaymentID: "pay_ok"}, nil
		})

	view, err := f.svc.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepConfirmation, view.Step)
	require.NotNil(t, view.Order)
	assert.Equal(t, "pay_ok", view.Order.PaymentID)
	assert.Equal(t, int64(1133), view.Order.Pricing.Total)
	assert.Equal(t, notify.PageConfirmation, f.nav.Last())

	// Cart empty, exactly one order with the session total.
	c, err := f.carts.Load(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	orders, err := f.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1133), orders[0].Pricing.Total)

	_, err = f.kv.Get(ctx, PromotionKey)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.Len(t, f.mailer.orders, 1)
	assert.NotEmpty(t, f.mailer.receipts[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EmailSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PaymentSucceeded.WithLabelValues("upi")))
	assert.Contains(t, f.eventTypes(t), "payment_success")

	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrCheckoutComplete)
}

func TestService_Pay_Declined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		Return(&billing.PaymentResult{Success: false, Reason: billing.DeclinedReason}, nil)

	_, err := f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepPaymentMethod, view.Step)

	orders, err := f.orders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	c, err := f.carts.Load(ctx)
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())

	last, _ := f.notes.Last()
	assert.Equal(t, notify.Error, last.Severity)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PaymentFailed.WithLabelValues("upi", "declined")))

	// Manual retry succeeds.
	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		Return(&billing.PaymentResult{Success: true, PaymentID: "pay_retry"}, nil)
	view, err = f.svc.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepConfirmation, view.Step)
}

func TestService_Pay_GatewayError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	boom := errors.New("gateway timeout")
	f.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err := f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PaymentFailed.WithLabelValues("upi", "error")))
}

func TestService_Pay_InProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, billing.ChargeRequest) (*billing.PaymentResult, error) {
			close(entered)
			<-release
			return &billing.PaymentResult{Success: true, PaymentID: "pay_once"}, nil
		}).
		Times(1)

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Pay(ctx)
		done <- err
	}()

	<-entered
	_, err := f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	_, err = f.svc.UpdateQuantity(ctx, "kundli", 3)
	assert.ErrorIs(t, err, ErrPaymentInProgress)

	close(release)
	require.NoError(t, <-done)

	orders, err := f.orders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestService_Pay_RequiresPaymentStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddItem(ctx, "kundli", "Kundli Reading", 1200, "")
	require.NoError(t, err)
	_, err = f.svc.Begin(ctx)
	require.NoError(t, err)

	_, err = f.svc.Pay(ctx)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestService_Pay_MailFailureKeepsOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mailer.err = errors.New("smtp down")
	f.toPayment(t, "")

	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		Return(&billing.PaymentResult{Success: true, PaymentID: "pay_1"}, nil)

	view, err := f.svc.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepConfirmation, view.Step)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EmailFailed))
}

func TestService_Receipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		Return(&billing.PaymentResult{Success: true, PaymentID: "pay_1"}, nil)
	view, err := f.svc.Pay(ctx)
	require.NoError(t, err)

	b, name, err := f.svc.Receipt(ctx, view.Order.OrderID)
	require.NoError(t, err)
	assert.Contains(t, string(b), view.Order.OrderID)
	assert.Equal(t, "receipt-"+view.Order.OrderID+".html", name)

	_, _, err = f.svc.Receipt(ctx, "AG-missing")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestService_Retreat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	view, err := f.svc.Retreat(ctx, domain.StepCustomerDetails)
	require.NoError(t, err)
	assert.Equal(t, domain.StepCustomerDetails, view.Step)
	assert.Equal(t, "Asha", view.Customer.FirstName)
	assert.Contains(t, f.eventTypes(t), "step_back")
}

func TestService_Pay_CompletesAfterCallerCancels(t *testing.T) {
	f := newFixture(t)
	f.toPayment(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(gctx context.Context, _ billing.ChargeRequest) (*billing.PaymentResult, error) {
			// The visitor closes the tab mid-payment.
			cancel()
			assert.NoError(t, gctx.Err())
			return &billing.PaymentResult{Success: true, PaymentID: "pay_detached"}, nil
		})

	view, err := f.svc.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepConfirmation, view.Step)

	orders, err := f.orders.List(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "pay_detached", orders[0].PaymentID)
}

func TestService_Pay_RetryRecordsCapturedPaymentWithoutRecharging(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	f.gateway.EXPECT().
		Charge(gomock.Any(), gomock.Any()).
		Return(&billing.PaymentResult{Success: true, PaymentID: "pay_captured"}, nil).
		Times(1)

	f.kv.failOrders.Store(true)
	_, err := f.svc.Pay(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.True(t, f.svc.PaymentPending())

	last, ok := f.notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, last.Severity)

	// The captured payment pins the checkout until its order is written.
	_, err = f.svc.UpdateQuantity(ctx, "kundli", 3)
	assert.ErrorIs(t, err, ErrPaymentInProgress)
	_, err = f.svc.Retreat(ctx, domain.StepReviewCart)
	assert.ErrorIs(t, err, ErrPaymentInProgress)

	f.kv.failOrders.Store(false)
	view, err := f.svc.Pay(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StepConfirmation, view.Step)
	assert.False(t, f.svc.PaymentPending())

	orders, err := f.orders.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "pay_captured", orders[0].PaymentID)
	assert.Equal(t, int64(1416), orders[0].Pricing.Total)
}

func TestService_Pay_IdempotencyKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.toPayment(t, "")

	var keys []string
	record := func(_ context.Context, req billing.ChargeRequest) {
		keys = append(keys, req.IdempotencyKey)
	}
	gomock.InOrder(
		f.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Do(record).
			Return(nil, errors.New("connection reset")),
		f.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Do(record).
			Return(&billing.PaymentResult{Success: false, Reason: "insufficient funds"}, nil),
		f.gateway.EXPECT().Charge(gomock.Any(), gomock.Any()).Do(record).
			Return(&billing.PaymentResult{Success: true, PaymentID: "pay_ok"}, nil),
	)

	_, err := f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	_, err = f.svc.Pay(ctx)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	_, err = f.svc.Pay(ctx)
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1], "an unknown outcome is retried under the same key")
	assert.NotEqual(t, keys[1], keys[2], "a decline starts a new payment")
}
