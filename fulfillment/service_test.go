package fulfillment

import (
	"testing"

	"github.com/cosmoos/cosmo_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_OneStageAtATime(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "1", models.StageOrderReceived)
	ctx := t.Context()

	_, err := f.s.Print(ctx, "c1", order.ID, f.staff.ID, nil)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ActionPrint, te.Action)
	assert.Equal(t, models.StageOrderReceived, te.Stage)

	got, err := f.s.SampleFreeIssue(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StageSampleFreeIssue, got.FulfillmentStage)
	require.NotNil(t, got.SampleFreeIssueById)
	assert.Equal(t, f.staff.ID, *got.SampleFreeIssueById)
	assert.NotNil(t, got.SampleFreeIssueAt)

	got, err = f.s.Print(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StagePrint, got.FulfillmentStage)

	_, err = f.s.Print(ctx, "c1", order.ID, f.staff.ID, nil)
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Reason, "already past")

	got, err = f.s.ReadyToDispatch(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StageReadyToDispatch, got.FulfillmentStage)
	assert.Equal(t, []models.NotificationTrigger{models.TriggerPackageReady}, f.pub.triggers())

	rows := f.sink.Transitions()
	require.Len(t, rows, 3)
	assert.Equal(t, ActionReadyToDispatch, rows[2].Action)
	assert.Equal(t, string(models.StagePrint), rows[2].FromStage)
	assert.Equal(t, string(models.StageReadyToDispatch), rows[2].ToStage)
}

func TestAdvance_RejectedActionChangesNothing(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "1", models.StageOrderReceived)

	_, err := f.s.CompleteDelivery(t.Context(), "c1", order.ID, f.staff.ID, &RemarkInput{Body: "left at gate"})
	require.Error(t, err)

	after := f.reload(t, order.ID)
	assert.Equal(t, models.StageOrderReceived, after.FulfillmentStage)
	var remarks int64
	require.NoError(t, f.db.Model(&models.OrderRemark{}).Count(&remarks).Error)
	assert.Zero(t, remarks)
	assert.Empty(t, f.pub.triggers())
	assert.Empty(t, f.sink.Transitions())
}

func TestOrderFromAnotherCompanyIsNotFound(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, "1", models.StageOrderReceived)

	_, err := f.s.SampleFreeIssue(t.Context(), "c2", order.ID, f.staff.ID, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.s.GetOrder(t.Context(), "c2", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestHold_BlocksDispatchUntilReverted(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	early := f.seedOrder(t, "1", models.StagePrint)
	order := f.seedOrder(t, "2", models.StageReadyToDispatch)

	_, err := f.s.Hold(ctx, "c1", early.ID, f.staff.ID, "customer called", nil)
	var te *TransitionError
	require.ErrorAs(t, err, &te)

	_, err = f.s.Hold(ctx, "c1", order.ID, f.staff.ID, "  ", nil)
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "reason", ie.Field)

	held, err := f.s.Hold(ctx, "c1", order.ID, f.staff.ID, "address unclear", nil)
	require.NoError(t, err)
	assert.True(t, held.IsOnHold())
	assert.Equal(t, models.StageReadyToDispatch, held.FulfillmentStage)
	require.NotNil(t, held.HoldReason)
	assert.Equal(t, "address unclear", *held.HoldReason)

	_, err = f.s.Hold(ctx, "c1", order.ID, f.staff.ID, "again", nil)
	require.ErrorAs(t, err, &te)

	_, err = f.s.Dispatch(ctx, "c1", order.ID, f.staff.ID, DispatchInput{Method: models.DispatchMethodCourier, CourierName: "Domex"})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "order is on hold", te.Reason)

	reverted, err := f.s.RevertHold(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.False(t, reverted.IsOnHold())
	assert.Nil(t, reverted.HoldAt)
	assert.Nil(t, reverted.HoldReason)
	assert.Nil(t, reverted.HoldById)
	stored := f.reload(t, order.ID)
	assert.Nil(t, stored.HoldAt)

	_, err = f.s.RevertHold(ctx, "c1", order.ID, f.staff.ID, nil)
	require.ErrorAs(t, err, &te)

	got, err := f.s.Dispatch(ctx, "c1", order.ID, f.staff.ID, DispatchInput{Method: models.DispatchMethodCourier, CourierName: "Domex"})
	require.NoError(t, err)
	assert.Equal(t, models.StageDispatched, got.FulfillmentStage)
}

func TestRemarks_AttachToResultingStage(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageSampleFreeIssue)

	got, err := f.s.Print(ctx, "c1", order.ID, f.staff.ID, &RemarkInput{Body: "printed twice", PrintOnInvoice: true})
	require.NoError(t, err)
	require.Len(t, got.Remarks, 1)
	assert.Equal(t, models.StagePrint, got.Remarks[0].Stage)
	assert.Equal(t, models.RemarkVisibilityInternal, got.Remarks[0].Visibility)
	assert.True(t, got.Remarks[0].PrintOnInvoice)
	assert.Equal(t, f.staff.ID, got.Remarks[0].CreatedById)

	remark, err := f.s.AddRemark(ctx, "c1", order.ID, f.staff.ID, RemarkInput{Body: "gift wrap", Visibility: models.RemarkVisibilityExternal})
	require.NoError(t, err)
	assert.Equal(t, models.StagePrint, remark.Stage)
	assert.Equal(t, models.RemarkVisibilityExternal, remark.Visibility)

	_, err = f.s.AddRemark(ctx, "c1", order.ID, f.staff.ID, RemarkInput{Body: "   "})
	var ie *InputError
	require.ErrorAs(t, err, &ie)
	_, err = f.s.AddRemark(ctx, "c1", order.ID, f.staff.ID, RemarkInput{Body: "x", Visibility: "public"})
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "visibility", ie.Field)

	loaded, err := f.s.GetOrder(ctx, "c1", order.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Remarks, 2)
}

func TestDispatch_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)
	inactive := f.rider
	inactive.ID = 0
	inactive.Name = "Former rider"
	inactive = seedInactive(t, f, inactive)

	cases := map[string]DispatchInput{
		"method":           {},
		"rider missing":    {Method: models.DispatchMethodRider},
		"not a rider":      {Method: models.DispatchMethodRider, RiderID: &f.staff.ID},
		"inactive rider":   {Method: models.DispatchMethodRider, RiderID: &inactive.ID},
		"courier nameless": {Method: models.DispatchMethodCourier, CourierName: " "},
	}
	for name, in := range cases {
		_, err := f.s.Dispatch(ctx, "c1", order.ID, f.staff.ID, in)
		var ie *InputError
		assert.ErrorAs(t, err, &ie, name)
	}
	assert.Equal(t, models.StageReadyToDispatch, f.reload(t, order.ID).FulfillmentStage)
	assert.Empty(t, f.pub.triggers())
}

func seedInactive(t *testing.T, f fixture, u models.CompanyUser) models.CompanyUser {
	t.Helper()
	require.NoError(t, f.db.Create(&u).Error)
	require.NoError(t, f.db.Model(&models.CompanyUser{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	return u
}

func TestCourierDispatch_SendsNoRiderLink(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)

	got, err := f.s.Dispatch(ctx, "c1", order.ID, f.staff.ID, DispatchInput{
		Method:         models.DispatchMethodCourier,
		CourierName:    "Domex",
		TrackingNumber: "DX-100",
	})
	require.NoError(t, err)
	require.NotNil(t, got.CourierName)
	assert.Equal(t, "Domex", *got.CourierName)
	require.NotNil(t, got.TrackingNumber)
	assert.Equal(t, "DX-100", *got.TrackingNumber)
	assert.Nil(t, got.RiderId)
	assert.Nil(t, got.DeliveryTokenHash)
	assert.Equal(t, []models.NotificationTrigger{models.TriggerDispatched}, f.pub.triggers())

	_, err = f.s.ResendRiderSms(ctx, "c1", order.ID, f.staff.ID)
	var te *TransitionError
	require.ErrorAs(t, err, &te)

	got, err = f.s.CompleteDelivery(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StageDeliveryComplete, got.FulfillmentStage)
	assert.False(t, got.DeliveryConfirmedByRider)
}

func TestCompleteInvoice_RequiresDelivery(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	pending := f.seedOrder(t, "1", models.StageDispatched)
	delivered := f.seedOrder(t, "2", models.StageDeliveryComplete)

	_, err := f.s.CompleteInvoice(ctx, "c1", pending.ID, f.staff.ID, nil)
	var te *TransitionError
	require.ErrorAs(t, err, &te)

	got, err := f.s.CompleteInvoice(ctx, "c1", delivered.ID, f.staff.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, got.InvoiceCompleteAt)
	assert.Equal(t, models.StageDeliveryComplete, got.FulfillmentStage)

	_, err = f.s.CompleteInvoice(ctx, "c1", delivered.ID, f.staff.ID, nil)
	require.ErrorAs(t, err, &te)
}

func TestRiderLink_ConfirmsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)

	token := f.dispatchToRider(t, order.ID)
	assert.GreaterOrEqual(t, len(token), MinTokenLength)
	assert.Equal(t,
		[]models.NotificationTrigger{models.TriggerRiderDispatched, models.TriggerDispatched},
		f.pub.triggers())

	stored := f.reload(t, order.ID)
	require.NotNil(t, stored.DeliveryTokenHash)
	assert.Equal(t, hashToken(token), *stored.DeliveryTokenHash)
	assert.NotEqual(t, token, *stored.DeliveryTokenHash)
	require.NotNil(t, stored.RiderId)
	assert.Equal(t, f.rider.ID, *stored.RiderId)

	status, err := f.s.DeliveryStatus(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, DeliveryPending, status.Status)
	assert.Equal(t, "1001", status.OrderNumber)

	status, err = f.s.ConfirmDelivery(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, DeliveryConfirmed, status.Status)
	assert.NotNil(t, status.DeliveredAt)

	done := f.reload(t, order.ID)
	assert.Equal(t, models.StageDeliveryComplete, done.FulfillmentStage)
	assert.True(t, done.DeliveryConfirmedByRider)
	assert.Nil(t, done.DeliveryTokenHash)
	require.NotNil(t, done.ConsumedDeliveryTokenHash)
	assert.Equal(t, hashToken(token), *done.ConsumedDeliveryTokenHash)

	published := len(f.pub.triggers())
	recorded := len(f.sink.Transitions())
	last := f.sink.Transitions()[recorded-1]
	assert.True(t, last.ByRider)
	assert.Nil(t, last.ActorID)

	status, err = f.s.ConfirmDelivery(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, DeliveryAlreadyConfirmed, status.Status)
	assert.Len(t, f.pub.triggers(), published)
	assert.Len(t, f.sink.Transitions(), recorded)
	assert.Equal(t, done.UpdatedAt, f.reload(t, order.ID).UpdatedAt)

	status, err = f.s.DeliveryStatus(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, DeliveryAlreadyConfirmed, status.Status)
}

func TestResendRiderSms_RotatesLink(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)
	first := f.dispatchToRider(t, order.ID)

	_, err := f.s.ResendRiderSms(ctx, "c1", order.ID, f.staff.ID)
	require.NoError(t, err)
	second := f.pub.lastLinkToken(t)
	assert.NotEqual(t, first, second)

	_, err = f.s.ConfirmDelivery(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidDeliveryLink)

	status, err := f.s.ConfirmDelivery(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, DeliveryConfirmed, status.Status)

	_, err = f.s.ResendRiderSms(ctx, "c1", order.ID, f.staff.ID)
	var te *TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestStaffCompletion_ConsumesRiderLink(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)
	token := f.dispatchToRider(t, order.ID)

	_, err := f.s.CompleteDelivery(ctx, "c1", order.ID, f.staff.ID, nil)
	require.NoError(t, err)

	status, err := f.s.ConfirmDelivery(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, DeliveryAlreadyConfirmed, status.Status)
	assert.False(t, f.reload(t, order.ID).DeliveryConfirmedByRider)
}

func TestRiderLink_MissesLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	order := f.seedOrder(t, "1", models.StageReadyToDispatch)
	token := f.dispatchToRider(t, order.ID)

	for _, bad := range []string{"", "short", token[:MinTokenLength-1], token + "x", "A" + token[1:]} {
		if bad == token {
			continue
		}
		_, err := f.s.DeliveryStatus(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidDeliveryLink, bad)
		_, err = f.s.ConfirmDelivery(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidDeliveryLink, bad)
	}
	assert.Equal(t, models.StageDispatched, f.reload(t, order.ID).FulfillmentStage)
}

func TestNewDeliveryToken(t *testing.T) {
	a, hashA, err := newDeliveryToken()
	require.NoError(t, err)
	b, _, err := newDeliveryToken()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.Len(t, hashA, 64)
	assert.Equal(t, hashToken(a), hashA)
	assert.NotContains(t, a, "=")
}
