package dashboard

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"atmos/internal/types"
)

const (
	timeLayout = "15:04"
	dateLayout = "Mon, Jan 2"
)

// IconURL returns the OpenWeatherMap image URL for an icon id.
func IconURL(icon string) string {
	return "https://openweathermap.org/img/wn/" + icon + "@4x.png"
}

// Renderer writes a State as plain text. Times are shown in Location.
type Renderer struct {
	Location *time.Location
}

// NewRenderer returns a Renderer using loc, or UTC when loc is nil.
func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{Location: loc}
}

// Render writes s to w.
func (r *Renderer) Render(w io.Writer, s State) error {
	var b strings.Builder

	b.WriteString("ATMOS\n")

	switch s.Status {
	case StatusLoading:
		b.WriteString("Loading weather data...\n")
		_, err := io.WriteString(w, b.String())
		return err
	case StatusError:
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}

	if s.Weather != nil {
		r.renderCurrent(&b, s.Weather)
	}

	if days := s.Days(); len(days) > 0 {
		fmt.Fprintf(&b, "\n%d-Day Forecast\n", MaxDailyCards)
		for _, d := range days {
			fmt.Fprintf(&b, "  %-12s %3d° %3d°  %s  %s\n",
				r.formatDate(d.Date),
				round(d.TempMax),
				round(d.TempMin),
				d.Condition.Description,
				IconURL(d.Condition.Icon),
			)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderCurrent(b *strings.Builder, c *types.CurrentWeather) {
	cond := c.Condition()

	fmt.Fprintf(b, "\n%s, %s\n", c.Name, c.Sys.Country)
	fmt.Fprintf(b, "%s\n", cond.Description)
	fmt.Fprintf(b, "%d°C  %s\n\n", round(c.Main.Temp), IconURL(cond.Icon))
	fmt.Fprintf(b, "  Feels Like  %d°C\n", round(c.Main.FeelsLike))
	fmt.Fprintf(b, "  Humidity    %g%%\n", c.Main.Humidity)
	fmt.Fprintf(b, "  Wind Speed  %d km/h\n", round(c.Wind.Speed*3.6))
	fmt.Fprintf(b, "  Pressure    %g hPa\n", c.Main.Pressure)
	fmt.Fprintf(b, "  Sunrise     %s\n", r.formatTime(c.Sys.Sunrise))
	fmt.Fprintf(b, "  Sunset      %s\n", r.formatTime(c.Sys.Sunset))
}

func (r *Renderer) formatTime(unix int64) string {
	return time.Unix(unix, 0).In(r.Location).Format(timeLayout)
}

// formatDate renders a "YYYY-MM-DD" date; unparseable input is returned as is.
func (r *Renderer) formatDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format(dateLayout)
}

func round(v float64) int {
	return int(math.Round(v))
}
