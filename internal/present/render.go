// Package present renders an acquisition State into display strings. It
// never talks to the network and never changes the State it is given.
package present

import (
	"fmt"
	"math"
	"strconv"

	"github.com/neexbeast/weatherly/internal/acquisition"
	"github.com/neexbeast/weatherly/internal/weather"
	"github.com/neexbeast/weatherly/internal/weathercode"
)

// Placeholder is shown for any value that has not been loaded yet.
const Placeholder = "--"

var iconClasses = map[weathercode.Icon]string{
	weathercode.IconClear:        "fa-sun",
	weathercode.IconPartlyCloudy: "fa-cloud-sun",
	weathercode.IconCloudy:       "fa-cloud",
	weathercode.IconFog:          "fa-smog",
	weathercode.IconRain:         "fa-cloud-rain",
	weathercode.IconSnow:         "fa-snowflake",
	weathercode.IconHeavyShowers: "fa-cloud-showers-heavy",
	weathercode.IconThunder:      "fa-cloud-bolt",
}

// Screen is everything the widget draws for one State.
type Screen struct {
	Query       string       `json:"query"`
	Loading     bool         `json:"loading"`
	Unit        weather.Unit `json:"unit"`
	Status      StatusLine   `json:"status"`
	Current     CurrentPanel `json:"current"`
	Forecast    []DayCard    `json:"forecast"`
	Suggestions []Suggestion `json:"suggestions"`
}

// StatusLine is the status bar: the message and its icon class.
type StatusLine struct {
	Kind    acquisition.StatusKind `json:"kind"`
	Message string                 `json:"message"`
	Icon    string                 `json:"icon"`
}

// CurrentPanel holds the current conditions, formatted for display.
type CurrentPanel struct {
	Icon        string `json:"icon"`
	Temperature string `json:"temperature"`
	Description string `json:"description"`
	Place       string `json:"place"`
	FeelsLike   string `json:"feels_like"`
	Humidity    string `json:"humidity"`
	Wind        string `json:"wind"`
	Pressure    string `json:"pressure"`
}

// DayCard is one forecast column. Today marks the first day.
type DayCard struct {
	Date        string `json:"date"`
	Weekday     string `json:"weekday"`
	Icon        string `json:"icon"`
	High        string `json:"high"`
	Low         string `json:"low"`
	Description string `json:"description"`
	Today       bool   `json:"today"`
}

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Label     string  `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IconClass returns the Font Awesome class for a weather code.
func IconClass(code int) string {
	return iconClasses[weathercode.IconFor(code)]
}

// PlaceLine formats a location as "name, country", or just the name when
// the country is unknown.
func PlaceLine(loc weather.Location) string {
	if loc.Country == "" {
		return loc.DisplayName
	}
	return loc.DisplayName + ", " + loc.Country
}

// Temperature formats a Celsius value in u, e.g. "68°F".
func Temperature(celsius float64, u weather.Unit) string {
	return fmt.Sprintf("%d°%s", weather.ConvertTemp(celsius, u), u.Symbol())
}

// Render builds the Screen for s.
func Render(s acquisition.State) Screen {
	sc := Screen{
		Query:       s.Query,
		Loading:     s.Loading(),
		Unit:        s.Unit,
		Status:      statusLine(s.Status),
		Current:     currentPanel(s),
		Forecast:    []DayCard{},
		Suggestions: make([]Suggestion, 0, len(s.Suggestions)),
	}

	if s.View != nil {
		for i, day := range s.View.Forecast {
			sc.Forecast = append(sc.Forecast, DayCard{
				Date:        day.Date.Format("2 Jan"),
				Weekday:     day.Date.Format("Mon"),
				Icon:        IconClass(day.WeatherCode),
				High:        fmt.Sprintf("%d°", weather.ConvertTemp(day.MaxTempC, s.Unit)),
				Low:         fmt.Sprintf("%d°", weather.ConvertTemp(day.MinTempC, s.Unit)),
				Description: weathercode.Describe(day.WeatherCode),
				Today:       i == 0,
			})
		}
	}

	for _, loc := range s.Suggestions {
		sc.Suggestions = append(sc.Suggestions, Suggestion{
			Label:     PlaceLine(loc),
			Latitude:  loc.Latitude,
			Longitude: loc.Longitude,
		})
	}
	return sc
}

func statusLine(st acquisition.Status) StatusLine {
	icon := "fa-info-circle"
	switch st.Kind {
	case acquisition.StatusError:
		icon = "fa-exclamation-circle"
	case acquisition.StatusSuccess:
		icon = "fa-check-circle"
	}
	return StatusLine{Kind: st.Kind, Message: st.Message, Icon: icon}
}

func currentPanel(s acquisition.State) CurrentPanel {
	if s.View == nil {
		empty := Placeholder + "°" + s.Unit.Symbol()
		return CurrentPanel{
			Icon:        iconClasses[weathercode.IconClear],
			Temperature: empty,
			Description: Placeholder,
			Place:       s.Query,
			FeelsLike:   empty,
			Humidity:    Placeholder + "%",
			Wind:        Placeholder + " m/s",
			Pressure:    Placeholder + " hPa",
		}
	}

	cur := s.View.Current
	return CurrentPanel{
		Icon:        IconClass(cur.WeatherCode),
		Temperature: Temperature(cur.TemperatureC, s.Unit),
		Description: weathercode.Describe(cur.WeatherCode),
		Place:       PlaceLine(s.View.Location),
		FeelsLike:   Temperature(cur.FeelsLikeC, s.Unit),
		Humidity:    strconv.Itoa(cur.HumidityPct) + "%",
		Wind:        strconv.FormatFloat(cur.WindSpeedMs, 'f', -1, 64) + " m/s",
		Pressure:    strconv.Itoa(int(math.Floor(cur.PressureHpa+0.5))) + " hPa",
	}
}
