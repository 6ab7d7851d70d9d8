package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// dateColumn scans a DATE column from any of the supported drivers.
// pgx and lib/pq hand back time.Time, SQLite hands back text.
type dateColumn struct {
	value *civil.Date
}

func (c *dateColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.value = nil
		return nil
	case time.Time:
		d := civil.DateOf(v)
		c.value = &d
		return nil
	case string:
		return c.scanText(v)
	case []byte:
		return c.scanText(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into date", src)
	}
}

func (c *dateColumn) scanText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		c.value = nil
		return nil
	}
	if len(s) > 10 {
		s = s[:10]
	}
	// Malformed dates written by other tools read back as absent.
	d, err := civil.ParseDate(s)
	if err != nil {
		c.value = nil
		return nil
	}
	c.value = &d
	return nil
}

// dateArg converts an optional date into a driver argument. Dates travel as
// ISO text so every driver binds them the same way.
func dateArg(d *civil.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeColumn scans a timestamp column stored natively or as text.
type timeColumn struct {
	value time.Time
}

func (c *timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.value = time.Time{}
		return nil
	case time.Time:
		c.value = v.UTC()
		return nil
	case string:
		return c.scanText(v)
	case []byte:
		return c.scanText(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into timestamp", src)
	}
}

func (c *timeColumn) scanText(s string) error {
	// time.Time.String() appends a monotonic clock reading and a zone name.
	if i := strings.Index(s, " m="); i >= 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c.value = t.UTC()
			return nil
		}
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999 -0700 MST", s); err == nil {
		c.value = t.UTC()
		return nil
	}
	return fmt.Errorf("sqlstore: parse timestamp %q", s)
}

// patchDateArg treats the zero date as a request to clear the column.
func patchDateArg(d civil.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// timestampLayout has fixed width so text comparisons in SQLite order correctly.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// timeArg converts an instant into a driver argument.
func timeArg(t time.Time) any {
	return t.UTC().Format(timestampLayout)
}
