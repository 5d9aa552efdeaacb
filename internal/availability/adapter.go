package availability

import (
	"unihaven-backend/internal/domain"
)

// WindowOf extracts a listing's availability window.
func WindowOf(l *domain.Listing) Window {
	return Window{From: l.AvailableFrom, To: l.AvailableTo}
}

// FromReservations maps stored reservation rows to periods.
func FromReservations(rows []domain.ReservationPeriod) []Period {
	periods := make([]Period, len(rows))
	for i, r := range rows {
		periods[i] = Period{Start: r.StartDate, End: r.EndDate}
	}
	return periods
}
