package eligibility_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmtofork/coldchain/internal/eligibility"
	"github.com/farmtofork/coldchain/internal/models"
)

// 2026-01-02 is a Friday, Sunday-first index 6.
const fridayDate = "2026-01-02"

func testOrder(date, slot string) *models.Order {
	return &models.Order{
		OrderID: 1,
		DeliveryInfo: models.DeliveryInfo{
			DeliveryDate: date,
			DeliveryTime: slot,
		},
	}
}

func refrigeratedProduct() *models.Product {
	return &models.Product{
		ProductID: 7,
		Details:   models.ProductDetails{TransportMode: models.TransportRefrigerated},
	}
}

func fridayPMCarrier(addr string) *models.Distributor {
	d := &models.Distributor{
		Addr:           addr,
		Name:           "carrier " + addr,
		IsRefrigerated: true,
		IsPM:           true,
	}
	d.WorkingDays[5] = true // Friday
	return d
}

func TestWeekdayIndexSundayFirst(t *testing.T) {
	idx, err := eligibility.WeekdayIndex("2026-01-04") // Sunday
	assert.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = eligibility.WeekdayIndex("2026-01-03") // Saturday
	assert.NoError(t, err)
	assert.Equal(t, 7, idx)

	idx, err = eligibility.WeekdayIndex(fridayDate)
	assert.NoError(t, err)
	assert.Equal(t, 6, idx)
}

func TestWeekdayIndexBadDate(t *testing.T) {
	_, err := eligibility.WeekdayIndex("02/01/2026")
	assert.Error(t, err)
}

func TestEligibleFridayPM(t *testing.T) {
	o := testOrder(fridayDate, "PM")
	p := refrigeratedProduct()
	d := fridayPMCarrier("0xd1")

	eligible, err := eligibility.EligibleDistributors(o, p, []*models.Distributor{d})
	assert.NoError(t, err)
	assert.Len(t, eligible, 1)
	assert.Equal(t, "0xd1", eligible[0].Addr)
}

func TestExcludedWhenDayOff(t *testing.T) {
	o := testOrder(fridayDate, "PM")
	p := refrigeratedProduct()
	d := fridayPMCarrier("0xd1")
	d.WorkingDays[5] = false
	d.WorkingDays[2] = true // Tuesday only

	eligible, err := eligibility.EligibleDistributors(o, p, []*models.Distributor{d})
	assert.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestExcludedWhenSlotMismatch(t *testing.T) {
	o := testOrder(fridayDate, "AM")
	p := refrigeratedProduct()
	d := fridayPMCarrier("0xd1") // PM only

	eligible, err := eligibility.EligibleDistributors(o, p, []*models.Distributor{d})
	assert.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestExcludedWhenTransportUnsupported(t *testing.T) {
	o := testOrder(fridayDate, "PM")
	p := refrigeratedProduct()
	p.Details.TransportMode = models.TransportFrozen
	d := fridayPMCarrier("0xd1") // refrigerated only

	eligible, err := eligibility.EligibleDistributors(o, p, []*models.Distributor{d})
	assert.NoError(t, err)
	assert.Empty(t, eligible)
}

func TestFilterKeepsOnlyMatching(t *testing.T) {
	o := testOrder(fridayDate, "PM")
	p := refrigeratedProduct()

	good := fridayPMCarrier("0xgood")
	wrongDay := fridayPMCarrier("0xday")
	wrongDay.WorkingDays[5] = false
	wrongSlot := fridayPMCarrier("0xslot")
	wrongSlot.IsPM = false
	wrongSlot.IsAM = true

	eligible, err := eligibility.EligibleDistributors(o, p, []*models.Distributor{good, wrongDay, wrongSlot})
	assert.NoError(t, err)
	assert.Len(t, eligible, 1)
	assert.Equal(t, "0xgood", eligible[0].Addr)
}
