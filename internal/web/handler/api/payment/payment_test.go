package payment

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/payment"
	"github.com/cardforge/cardforge/internal/web/handler"
	"github.com/cardforge/cardforge/internal/web/handler/handlertest"
)

type checkoutResult struct {
	Payment     models.Payment `json:"payment"`
	Success     bool           `json:"success"`
	RedirectURL string         `json:"redirectUrl"`
}

func proPlan(t *testing.T, env *handlertest.Env) models.SubscriptionPlan {
	t.Helper()

	plan := models.SubscriptionPlan{
		Name:       "Pro",
		Slug:       "pro",
		PriceMinor: 4900,
		Currency:   "SAR",
		Interval:   models.IntervalMonth,
		MaxCards:   10,
		IsActive:   true,
	}
	require.NoError(t, env.DB.Create(&plan).Error)

	return plan
}

func TestCheckoutConfirmsAndActivatesPlan(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)
	plan := proPlan(t, env)

	resp := env.Do(user, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := handlertest.Decode[checkoutResult](t, resp)
	assert.True(t, out.Success)
	assert.Equal(t, models.PaymentConfirmed, out.Payment.Status)
	assert.Equal(t, int64(4900), out.Payment.Amount)
	assert.Equal(t, int64(4900), out.Payment.CapturedAmount)
	assert.Equal(t, "SAR", out.Payment.Currency)
	assert.Equal(t, "http://localhost:8080"+CallbackPath+"/"+handlertest.DriverName, out.Payment.MetadataString("callback_url"))

	active, err := env.Deps.Subscriptions.Plan(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, active.ID)

	resp = env.Do(user, http.MethodGet, Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := handlertest.Decode[handler.Page[models.Payment]](t, resp)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, out.Payment.UUID, page.Items[0].UUID)
}

func TestCheckoutRejections(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)
	plan := proPlan(t, env)

	var free models.SubscriptionPlan
	require.NoError(t, env.DB.Where("is_default = ?", true).First(&free).Error)

	tests := []struct {
		name       string
		in         Checkout
		wantStatus int
	}{
		{"missing plan", Checkout{}, http.StatusUnprocessableEntity},
		{"unknown plan", Checkout{PlanID: 9999}, http.StatusNotFound},
		{"free plan", Checkout{PlanID: free.ID}, http.StatusUnprocessableEntity},
		{"unavailable gateway", Checkout{PlanID: plan.ID, Gateway: "paypal"}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(user, http.MethodPost, Path, tt.in)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	resp := env.Do(nil, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeclinedCheckoutFails(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)
	plan := proPlan(t, env)
	env.Driver.Status = models.PaymentFailed

	resp := env.Do(user, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := handlertest.Decode[checkoutResult](t, resp)
	assert.False(t, out.Success)
	assert.Equal(t, models.PaymentFailed, out.Payment.Status)

	active, err := env.Deps.Subscriptions.Active(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCallbackConfirmsRedirectedPayment(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)
	plan := proPlan(t, env)
	env.Driver.Status = models.PaymentProcessing

	resp := env.Do(user, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	out := handlertest.Decode[checkoutResult](t, resp)
	require.True(t, out.Success)
	require.Equal(t, models.PaymentProcessing, out.Payment.Status)
	require.NotEmpty(t, out.RedirectURL)

	reference := out.Payment.GatewayReference
	callback := CallbackPath + "/" + handlertest.DriverName + "?id=" + reference

	resp = env.Do(nil, http.MethodGet, callback, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, handlertest.Decode[checkoutResult](t, resp).Success, "the provider has not captured yet")

	env.Driver.Settle(reference)

	resp = env.Do(nil, http.MethodGet, callback, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	confirmed := handlertest.Decode[checkoutResult](t, resp)
	assert.True(t, confirmed.Success)
	assert.Equal(t, models.PaymentConfirmed, confirmed.Payment.Status)

	// a repeated callback is answered without confirming twice
	resp = env.Do(nil, http.MethodGet, callback, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, handlertest.Decode[checkoutResult](t, resp).Success)

	var subs int64
	require.NoError(t, env.DB.Model(&models.Subscription{}).Where("user_id = ?", user.ID).Count(&subs).Error)
	assert.Equal(t, int64(1), subs)

	resp = env.Do(nil, http.MethodGet, CallbackPath+"/"+handlertest.DriverName, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCallbackByPaymentIDAfterLostChargeResponse(t *testing.T) {
	env := handlertest.New(t, &Service{})
	user := env.User("alice", models.RoleUser)
	plan := proPlan(t, env)
	env.Driver.ChargeErr = errors.New("read: connection reset by peer")

	resp := env.Do(user, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = env.Do(user, http.MethodGet, Path, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := handlertest.Decode[handler.Page[models.Payment]](t, resp)
	require.Len(t, page.Items, 1)

	lost := page.Items[0]
	require.Equal(t, models.PaymentProcessing, lost.Status)
	require.Empty(t, lost.GatewayReference)

	base := CallbackPath + "/" + handlertest.DriverName + "?" + payment.ProviderPaymentKey + "="

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"unknown payment", base + "00000000-0000-0000-0000-000000000000", http.StatusNotFound},
		{"other gateway", CallbackPath + "/moyasar?" + payment.ProviderPaymentKey + "=" + lost.UUID, http.StatusServiceUnavailable},
		{"charge found by payment id", base + lost.UUID + "&id=ch_1", http.StatusOK},
		{"reference of another charge", base + lost.UUID + "&id=ch_2", http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.Do(nil, http.MethodGet, tt.target, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	stored, err := env.Deps.Payments.Ledger().FindByUUID(t.Context(), lost.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentConfirmed, stored.Status)
	assert.Equal(t, "ch_1", stored.GatewayReference)
	assert.NotNil(t, stored.FulfilledAt)

	active, err := env.Deps.Subscriptions.Plan(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, active.ID)
}

func TestPaymentsAreVisibleToOwnerOnly(t *testing.T) {
	env := handlertest.New(t, &Service{})
	owner := env.User("alice", models.RoleUser)
	other := env.User("bob", models.RoleUser)
	plan := proPlan(t, env)

	resp := env.Do(owner, http.MethodPost, Path, Checkout{PlanID: plan.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	id := handlertest.Decode[checkoutResult](t, resp).Payment.UUID

	resp = env.Do(other, http.MethodGet, Path+"/"+id, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.Do(owner, http.MethodGet, Path+"/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", handlertest.Decode[map[string]string](t, resp)["gatewayStatus"])
}
