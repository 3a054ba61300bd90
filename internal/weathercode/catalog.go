// Package weathercode maps WMO weather interpretation codes, as returned by
// Open-Meteo, to labels and icon categories.
package weathercode

// Icon is a coarse visual category for a weather code.
type Icon string

const (
	IconClear        Icon = "clear"
	IconPartlyCloudy Icon = "partly_cloudy"
	IconCloudy       Icon = "cloudy"
	IconFog          Icon = "fog"
	IconRain         Icon = "rain"
	IconSnow         Icon = "snow"
	IconHeavyShowers Icon = "heavy_showers"
	IconThunder      Icon = "thunder"
)

// Unknown is the label for any code outside the catalog.
const Unknown = "Unknown"

var labels = map[int]string{
	0:  "Clear sky",
	1:  "Mostly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Drizzle",
	55: "Dense drizzle",
	61: "Light rain",
	63: "Rain",
	65: "Heavy rain",
	71: "Light snow",
	73: "Snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Light showers",
	81: "Showers",
	82: "Violent showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Severe thunderstorm with hail",
}

// Describe returns the label for code, or Unknown.
func Describe(code int) string {
	if label, ok := labels[code]; ok {
		return label
	}
	return Unknown
}

// IconFor returns the icon category for code. Codes matching no range fall
// back to IconClear.
func IconFor(code int) Icon {
	switch {
	case code == 0:
		return IconClear
	case code == 1 || code == 2:
		return IconPartlyCloudy
	case code == 3:
		return IconCloudy
	case code >= 45 && code <= 48:
		return IconFog
	case code >= 51 && code <= 67:
		return IconRain
	case code >= 71 && code <= 77:
		return IconSnow
	case code >= 80 && code <= 82:
		return IconHeavyShowers
	case code >= 95:
		return IconThunder
	default:
		return IconClear
	}
}
