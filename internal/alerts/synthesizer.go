package alerts

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-compliance/internal/compliance"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Plan is the set of alert mutations needed to bring the alert collection in
// line with a vehicle's current document state. Synthesize computes it as a
// pure function over a snapshot; the gateway applies it inside the same write
// that changed the documents.
type Plan struct {
	Create  []models.Alert
	Update  []models.Alert
	Resolve []primitive.ObjectID
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Resolve) == 0
}

// Synthesize computes the alert plan for a vehicle. existing must contain the
// vehicle's current alerts, read and unread. Rules, per document series:
//
//   - latest document overdue or expiring soon: the unread alert for the
//     series is updated in place (idempotent), or a new unread one is created.
//     A read alert that still reflects the current document's due date
//     suppresses re-creation; the user already acknowledged it.
//   - latest document compliant or missing: the unread alert for the series is
//     resolved, so a renewed document clears its superseded warning in the
//     same write.
//
// Read alerts are never mutated; they are a log, not a queue.
func Synthesize(v models.Vehicle, existing []models.Alert, today time.Time, warningDays int) Plan {
	unread := make(map[models.TypeKey]models.Alert)
	readDue := make(map[models.TypeKey][]time.Time)
	for _, a := range existing {
		if a.IsRead {
			readDue[a.SeriesKey()] = append(readDue[a.SeriesKey()], a.DueDate)
		} else {
			unread[a.SeriesKey()] = a
		}
	}

	var plan Plan
	for _, key := range seriesUnion(v.Documents, existing) {
		latest := compliance.LatestByKey(v.Documents, key)
		var status compliance.Status
		if latest == nil {
			status = compliance.StatusMissing
		} else {
			status = compliance.ComputeStatus(latest.ExpiryDate, today, warningDays)
		}

		current, hasUnread := unread[key]

		switch status {
		case compliance.StatusOverdue, compliance.StatusExpiringSoon:
			due := *latest.ExpiryDate
			msg := alertMessage(key, v.RegistrationNumber, status, due, today)
			if hasUnread {
				if !sameDay(current.DueDate, due) || current.Message != msg {
					current.DueDate = due
					current.Message = msg
					plan.Update = append(plan.Update, current)
				}
				continue
			}
			if readReflects(readDue[key], due) {
				continue
			}
			plan.Create = append(plan.Create, models.Alert{
				VehicleID:           v.ID,
				Type:                key.Type,
				CustomTypeName:      key.CustomName,
				Message:             msg,
				DueDate:             due,
				IsRead:              false,
				CreatedAt:           today,
				VehicleRegistration: v.RegistrationNumber,
			})
		default:
			// Compliant or missing: a lingering unread alert references a
			// since-renewed document and must not stay outstanding.
			if hasUnread {
				plan.Resolve = append(plan.Resolve, current.ID)
			}
		}
	}
	return plan
}

// UnreadCount counts distinct outstanding alerts. With the dedup invariant
// this equals the number of series currently overdue or expiring soon.
func UnreadCount(existing []models.Alert) int {
	n := 0
	for _, a := range existing {
		if !a.IsRead {
			n++
		}
	}
	return n
}

func alertMessage(key models.TypeKey, registration string, status compliance.Status, due, today time.Time) string {
	label := string(key.Type)
	if key.Type == models.DocTypeOther {
		if key.CustomName != "" {
			label = key.CustomName
		} else {
			label = "Other document"
		}
	}
	if status == compliance.StatusOverdue {
		return fmt.Sprintf("%s for %s expired on %s", label, registration, due.Format("2006-01-02"))
	}
	days := compliance.DaysRemaining(due, today)
	if days == 0 {
		return fmt.Sprintf("%s for %s expires today (%s)", label, registration, due.Format("2006-01-02"))
	}
	return fmt.Sprintf("%s for %s expires in %d days (%s)", label, registration, days, due.Format("2006-01-02"))
}

func seriesUnion(docs []models.Document, existing []models.Alert) []models.TypeKey {
	keys := compliance.SeriesKeys(docs)
	seen := make(map[models.TypeKey]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, a := range existing {
		if k := a.SeriesKey(); !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func readReflects(dues []time.Time, due time.Time) bool {
	for _, d := range dues {
		if sameDay(d, due) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
