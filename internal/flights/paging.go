package flights

import "time"

// BandRatios is the fraction of a day's flight volume falling into each of
// five fixed time bands: 00-06, 06-10, 10-15, 15-20 and 20-24. The values
// are empirical per source and must sum to 1.
type BandRatios [5]float64

// bandBoundaries are the band edges in minutes from midnight.
var bandBoundaries = [6]float64{0, 360, 600, 900, 1200, 1440}

// EstimatePage interpolates a starting page number for a target time on a
// source that paginates only by page number. The cumulative volume fraction
// up to t is mapped linearly onto [1, maxPage]. dayOffset shifts t by whole
// days for boards that roll past midnight.
func EstimatePage(t time.Time, maxPage int, ratios BandRatios, dayOffset int) int {
	if maxPage <= 1 {
		return 1
	}

	minutes := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60 + float64(dayOffset)*1440

	cumulative := 0.0
	for i := 0; i < len(ratios); i++ {
		lower, upper := bandBoundaries[i], bandBoundaries[i+1]
		if minutes < upper {
			cumulative += (minutes - lower) / (upper - lower) * ratios[i]
			break
		}
		cumulative += ratios[i]
	}

	page := int(cumulative*float64(maxPage)) + 1
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	return page
}
