package compliance

import (
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// VehicleStatus is the overall compliance badge for a vehicle.
type VehicleStatus string

const (
	VehicleOverdue      VehicleStatus = "overdue"
	VehicleExpiringSoon VehicleStatus = "expiring_soon"
	VehicleMissingInfo  VehicleStatus = "missing_info"
	VehicleCompliant    VehicleStatus = "compliant"
)

// EssentialTypes are the document types every vehicle is expected to carry.
// A vehicle missing any of these is at best missing_info.
var EssentialTypes = []models.DocumentType{
	models.DocTypeInsurance,
	models.DocTypeFitness,
	models.DocTypePUC,
}

// VehicleStatusResult is the overall badge plus the series that decided it.
type VehicleStatusResult struct {
	Status           VehicleStatus  `json:"status"`
	ContributingType models.TypeKey `json:"contributing_type"`
}

// ResolveVehicleStatus reduces the per-series statuses of a vehicle into one
// badge using the strict priority overdue > expiring_soon > missing_info >
// compliant. The tracked set is the essential types plus every additional
// series present in the history. A vehicle with no documents at all is
// missing_info.
func ResolveVehicleStatus(v models.Vehicle, today time.Time, warningDays int) VehicleStatusResult {
	tracked := trackedKeys(v.Documents)

	result := VehicleStatusResult{Status: VehicleCompliant}
	if len(v.Documents) == 0 {
		result.Status = VehicleMissingInfo
		result.ContributingType = models.TypeKey{Type: models.DocTypeInsurance}
		return result
	}

	best := VehicleCompliant
	contributing := tracked[0]
	for _, key := range tracked {
		var s VehicleStatus
		latest := LatestByKey(v.Documents, key)
		if latest == nil {
			s = VehicleMissingInfo
		} else {
			switch ComputeStatus(latest.ExpiryDate, today, warningDays) {
			case StatusOverdue:
				s = VehicleOverdue
			case StatusExpiringSoon:
				s = VehicleExpiringSoon
			case StatusMissing:
				s = VehicleMissingInfo
			default:
				s = VehicleCompliant
			}
		}
		if statusRank(s) < statusRank(best) {
			best = s
			contributing = key
		}
	}

	result.Status = best
	result.ContributingType = contributing
	return result
}

func trackedKeys(docs []models.Document) []models.TypeKey {
	keys := make([]models.TypeKey, 0, len(EssentialTypes))
	seen := make(map[models.TypeKey]bool)
	for _, t := range EssentialTypes {
		key := models.TypeKey{Type: t}
		keys = append(keys, key)
		seen[key] = true
	}
	for _, key := range SeriesKeys(docs) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func statusRank(s VehicleStatus) int {
	switch s {
	case VehicleOverdue:
		return 0
	case VehicleExpiringSoon:
		return 1
	case VehicleMissingInfo:
		return 2
	default:
		return 3
	}
}
