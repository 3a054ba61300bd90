package weather

import "time"

const dateLayout = "2006-01-02"

// Normalize combines a resolved location and a forecast report into a View.
// The daily columns are zipped by index and truncated to the shortest one;
// days whose date does not parse are dropped. The result always has a
// non-nil Forecast, empty when the report carried no daily block.
func Normalize(loc Location, report Report) *View {
	return &View{
		Location: loc,
		Current:  report.Current,
		Forecast: zipDaily(report.Daily),
	}
}

func zipDaily(d Daily) []ForecastDay {
	n := min(len(d.Time), len(d.MaxTempC), len(d.MinTempC), len(d.WeatherCode))

	days := make([]ForecastDay, 0, n)
	for i := 0; i < n; i++ {
		date, err := time.Parse(dateLayout, d.Time[i])
		if err != nil {
			continue
		}
		days = append(days, ForecastDay{
			Date:        date,
			MaxTempC:    d.MaxTempC[i],
			MinTempC:    d.MinTempC[i],
			WeatherCode: d.WeatherCode[i],
		})
	}
	return days
}
