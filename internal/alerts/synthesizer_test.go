package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func vehicleWith(docs ...models.Document) models.Vehicle {
	return models.Vehicle{
		ID:                 primitive.NewObjectID(),
		RegistrationNumber: "KA01AB1234",
		Documents:          docs,
	}
}

func insuranceDoc(expiry *time.Time, uploadedAt time.Time) models.Document {
	return models.Document{
		ID:         primitive.NewObjectID(),
		Type:       models.DocTypeInsurance,
		ExpiryDate: expiry,
		UploadedAt: uploadedAt,
	}
}

func applyPlan(existing []models.Alert, plan Plan) []models.Alert {
	var out []models.Alert
	resolved := make(map[primitive.ObjectID]bool)
	for _, id := range plan.Resolve {
		resolved[id] = true
	}
	updated := make(map[primitive.ObjectID]models.Alert)
	for _, a := range plan.Update {
		updated[a.ID] = a
	}
	for _, a := range existing {
		if resolved[a.ID] {
			continue
		}
		if u, ok := updated[a.ID]; ok {
			a = u
		}
		out = append(out, a)
	}
	for _, a := range plan.Create {
		a.ID = primitive.NewObjectID()
		out = append(out, a)
	}
	return out
}

func TestSynthesize_CreatesAlertForOverdueDocument(t *testing.T) {
	today := date(2024, time.January, 15)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.January, 1), date(2023, time.June, 1)))

	plan := Synthesize(v, nil, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Resolve)

	a := plan.Create[0]
	assert.Equal(t, v.ID, a.VehicleID)
	assert.Equal(t, models.DocTypeInsurance, a.Type)
	assert.Equal(t, date(2024, time.January, 1), a.DueDate)
	assert.False(t, a.IsRead)
	assert.Equal(t, "KA01AB1234", a.VehicleRegistration)
	assert.Contains(t, a.Message, "expired on 2024-01-01")
}

func TestSynthesize_CreatesAlertForExpiringSoon(t *testing.T) {
	today := date(2024, time.March, 10)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.March, 20), date(2024, time.January, 1)))

	plan := Synthesize(v, nil, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Create, 1)
	assert.Contains(t, plan.Create[0].Message, "expires in 10 days")
}

func TestSynthesize_NoAlertForCompliantOrMissing(t *testing.T) {
	today := date(2024, time.March, 10)

	compliant := vehicleWith(insuranceDoc(datePtr(2025, time.January, 1), date(2024, time.January, 1)))
	assert.True(t, Synthesize(compliant, nil, today, compliance.DefaultWarningWindowDays).Empty())

	noExpiry := vehicleWith(insuranceDoc(nil, date(2024, time.January, 1)))
	assert.True(t, Synthesize(noExpiry, nil, today, compliance.DefaultWarningWindowDays).Empty())

	empty := vehicleWith()
	assert.True(t, Synthesize(empty, nil, today, compliance.DefaultWarningWindowDays).Empty())
}

func TestSynthesize_Idempotent(t *testing.T) {
	today := date(2024, time.January, 15)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.January, 1), date(2023, time.June, 1)))

	first := Synthesize(v, nil, today, compliance.DefaultWarningWindowDays)
	require.Len(t, first.Create, 1)

	alerts := applyPlan(nil, first)
	second := Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	assert.True(t, second.Empty(), "unchanged document must not produce a second unread alert")
	assert.Equal(t, 1, UnreadCount(applyPlan(alerts, second)))
}

func TestSynthesize_UpdatesUnreadAlertInPlace(t *testing.T) {
	today := date(2024, time.March, 10)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.March, 20), date(2024, time.January, 1)))

	alerts := applyPlan(nil, Synthesize(v, nil, today, compliance.DefaultWarningWindowDays))
	require.Len(t, alerts, 1)

	// A renewal uploaded later still lands inside the warning window.
	v.Documents = append(v.Documents, insuranceDoc(datePtr(2024, time.April, 5), date(2024, time.March, 9)))

	plan := Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Resolve)
	require.Len(t, plan.Update, 1)
	assert.Equal(t, alerts[0].ID, plan.Update[0].ID)
	assert.Equal(t, date(2024, time.April, 5), plan.Update[0].DueDate)
}

func TestSynthesize_CompliantRenewalResolvesUnreadAlert(t *testing.T) {
	today := date(2024, time.January, 15)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.January, 1), date(2023, time.June, 1)))

	alerts := applyPlan(nil, Synthesize(v, nil, today, compliance.DefaultWarningWindowDays))
	require.Len(t, alerts, 1)

	v.Documents = append(v.Documents, insuranceDoc(datePtr(2025, time.January, 1), date(2024, time.January, 14)))

	plan := Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.Update)
	require.Len(t, plan.Resolve, 1)
	assert.Equal(t, alerts[0].ID, plan.Resolve[0])

	remaining := applyPlan(alerts, plan)
	assert.Equal(t, 0, UnreadCount(remaining))
}

func TestSynthesize_ReadAlertIsNeverTouched(t *testing.T) {
	today := date(2024, time.January, 15)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.January, 1), date(2023, time.June, 1)))

	alerts := applyPlan(nil, Synthesize(v, nil, today, compliance.DefaultWarningWindowDays))
	require.Len(t, alerts, 1)
	alerts[0].IsRead = true

	// Acknowledged alert for the still-current document: nothing to do.
	plan := Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	assert.True(t, plan.Empty())

	// A renewal uploaded later with a new, still-overdue expiry no longer
	// matches the read alert, so a fresh unread one appears.
	v.Documents = append(v.Documents, insuranceDoc(datePtr(2024, time.January, 10), date(2024, time.January, 5)))
	plan = Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Create, 1)
	assert.Empty(t, plan.Resolve, "read alerts are history, not candidates for resolution")
	assert.Equal(t, date(2024, time.January, 10), plan.Create[0].DueDate)
}

func TestSynthesize_OtherSeriesTrackedIndependently(t *testing.T) {
	today := date(2024, time.January, 15)
	permit := models.Document{
		ID:             primitive.NewObjectID(),
		Type:           models.DocTypeOther,
		CustomTypeName: "State Permit",
		ExpiryDate:     datePtr(2024, time.January, 1),
		UploadedAt:     date(2023, time.June, 1),
	}
	v := vehicleWith(insuranceDoc(datePtr(2024, time.January, 5), date(2023, time.June, 1)), permit)

	plan := Synthesize(v, nil, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Create, 2)

	alerts := applyPlan(nil, plan)
	assert.Equal(t, 2, UnreadCount(alerts))

	// Renewing only the permit resolves only the permit's alert.
	renewal := permit
	renewal.ID = primitive.NewObjectID()
	renewal.ExpiryDate = datePtr(2025, time.January, 1)
	renewal.UploadedAt = date(2024, time.January, 14)
	v.Documents = append(v.Documents, renewal)

	plan = Synthesize(v, alerts, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Resolve, 1)
	assert.Empty(t, plan.Create)

	remaining := applyPlan(alerts, plan)
	assert.Equal(t, 1, UnreadCount(remaining))
	assert.Equal(t, models.DocTypeInsurance, remaining[0].Type)
}

func TestSynthesize_ExpiresTodayMessage(t *testing.T) {
	today := date(2024, time.March, 10)
	v := vehicleWith(insuranceDoc(datePtr(2024, time.March, 10), date(2024, time.January, 1)))

	plan := Synthesize(v, nil, today, compliance.DefaultWarningWindowDays)
	require.Len(t, plan.Create, 1)
	assert.Contains(t, plan.Create[0].Message, "expires today")
}

func TestUnreadCount(t *testing.T) {
	alerts := []models.Alert{
		{ID: primitive.NewObjectID(), IsRead: false},
		{ID: primitive.NewObjectID(), IsRead: true},
		{ID: primitive.NewObjectID(), IsRead: false},
	}
	assert.Equal(t, 2, UnreadCount(alerts))
	assert.Equal(t, 0, UnreadCount(nil))
}
