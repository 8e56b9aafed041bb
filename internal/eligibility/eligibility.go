// Package eligibility implements the distributor assignment filter: which
// registered distributors can serve an order's delivery date, time slot and
// the product's transport mode.
package eligibility

import (
	"fmt"
	"time"

	"github.com/farmtofork/coldchain/internal/models"
)

const dateLayout = "2006-01-02"

// WeekdayIndex maps an ISO delivery date to the Sunday-first weekday index
// (Sunday=1 .. Saturday=7).
func WeekdayIndex(deliveryDate string) (int, error) {
	d, err := time.Parse(dateLayout, deliveryDate)
	if err != nil {
		return 0, fmt.Errorf("parse delivery date %q: %w", deliveryDate, err)
	}
	return int(d.Weekday()) + 1, nil
}

// WorksOnDay reports whether the distributor works on the order's delivery
// date. WorkingDays is Sunday-first, so index weekday-1.
func WorksOnDay(d *models.Distributor, deliveryDate string) (bool, error) {
	idx, err := WeekdayIndex(deliveryDate)
	if err != nil {
		return false, err
	}
	return d.WorkingDays[idx-1], nil
}

// WorksOnSlot reports whether the distributor serves the AM/PM slot.
func WorksOnSlot(d *models.Distributor, deliveryTime string) bool {
	switch deliveryTime {
	case "AM":
		return d.IsAM
	case "PM":
		return d.IsPM
	}
	return false
}

// EligibleDistributors filters candidates down to those matching the order's
// working day, time slot and the product's transport mode. The transport
// check was absent from the original filter even though the capability flags
// existed on the record; it is enforced here.
func EligibleDistributors(o *models.Order, p *models.Product, candidates []*models.Distributor) ([]*models.Distributor, error) {
	idx, err := WeekdayIndex(o.DeliveryInfo.DeliveryDate)
	if err != nil {
		return nil, err
	}
	eligible := make([]*models.Distributor, 0, len(candidates))
	for _, d := range candidates {
		if !d.WorkingDays[idx-1] {
			continue
		}
		if !WorksOnSlot(d, o.DeliveryInfo.DeliveryTime) {
			continue
		}
		if !d.SupportsTransport(p.Details.TransportMode) {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible, nil
}
