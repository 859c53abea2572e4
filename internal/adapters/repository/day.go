package repository

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/okian/kayfabe/internal/domain/model"
)

// sqlDay stores a calendar day as YYYY-MM-DD text so that lexical and
// chronological order agree on every driver.
type sqlDay time.Time

// Value implements driver.Valuer. The zero day sorts before every stored
// date.
func (d sqlDay) Value() (driver.Value, error) {
	t := time.Time(d)
	if t.IsZero() {
		return "", nil
	}
	return t.Format(model.DayLayout), nil
}

// Scan implements sql.Scanner.
func (d *sqlDay) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = sqlDay{}
		return nil
	case time.Time:
		*d = sqlDay(model.Day(v))
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan day from %T", src)
	}
}

func (d *sqlDay) parse(s string) error {
	if s == "" {
		*d = sqlDay{}
		return nil
	}
	if len(s) > len(model.DayLayout) {
		s = s[:len(model.DayLayout)]
	}
	t, err := model.ParseDay(s)
	if err != nil {
		return err
	}
	*d = sqlDay(t)
	return nil
}
