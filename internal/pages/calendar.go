package pages

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/taskboards/taskboards/internal/calendar"
	"github.com/taskboards/taskboards/internal/demo"
	"github.com/taskboards/taskboards/internal/filter"
)

// CalendarPage shows the visible tasks on a month grid.
type CalendarPage struct {
	*view
	now func() time.Time
}

// NewCalendarPage creates the page. binder may be nil for a detached filter.
func NewCalendarPage(coord *demo.Coordinator, source TaskSource, binder *filter.Binder, logger *log.Logger) (*CalendarPage, error) {
	v, err := newView(coord, source, binder, logger)
	if err != nil {
		return nil, err
	}
	return &CalendarPage{view: v, now: time.Now}, nil
}

// Month lays out the month containing ref.
func (p *CalendarPage) Month(ref time.Time) calendar.Month {
	return calendar.Build(p.Visible(), ref, p.now())
}
