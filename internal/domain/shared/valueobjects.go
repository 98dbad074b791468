// Package shared contains common domain types, errors, events, and value objects.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTIFIERS
// Opaque, externally issued identifiers. The platform issues UUIDs, but the
// domain only requires them to be stable and non-empty.
// ══════════════════════════════════════════════════════════════════════════════

// LearnerID идентифицирует учащегося. Выдаётся внешним провайдером аккаунтов.
type LearnerID string

// CourseID идентифицирует курс.
type CourseID string

// LessonID идентифицирует урок внутри курса.
type LessonID string

// BadgeID идентифицирует бейдж из статического каталога.
type BadgeID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsEmpty возвращает true для пустого идентификатора.
func (id LearnerID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

// IsUUID проверяет, что идентификатор имеет формат UUID.
func (id LearnerID) IsUUID() bool { return uuidRegex.MatchString(string(id)) }

// Validate проверяет корректность идентификатора.
func (id LearnerID) Validate() error {
	if id.IsEmpty() {
		return ErrInvalidLearnerID
	}
	return nil
}

func (id LearnerID) String() string { return string(id) }

// IsEmpty возвращает true для пустого идентификатора.
func (id CourseID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

// Validate проверяет корректность идентификатора.
func (id CourseID) Validate() error {
	if id.IsEmpty() {
		return ErrInvalidCourseID
	}
	return nil
}

func (id CourseID) String() string { return string(id) }

// IsEmpty возвращает true для пустого идентификатора.
func (id LessonID) IsEmpty() bool { return strings.TrimSpace(string(id)) == "" }

// Validate проверяет корректность идентификатора.
func (id LessonID) Validate() error {
	if id.IsEmpty() {
		return ErrInvalidLessonID
	}
	return nil
}

func (id LessonID) String() string { return string(id) }

func (id BadgeID) String() string { return string(id) }

// ══════════════════════════════════════════════════════════════════════════════
// XP (Experience Points)
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта. Всегда неотрицательное значение;
// итог учащегося равен сумме записей журнала начислений и никогда
// не уменьшается.
type XP int

// Add возвращает сумму. XP монотонно растёт, вычитания в домене нет.
func (x XP) Add(delta XP) XP {
	return x + delta
}

// IsValid проверяет, что значение неотрицательное.
func (x XP) IsValid() bool {
	return x >= 0
}

func (x XP) Int() int { return int(x) }

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR DATE
// Streak-логика работает с календарными датами (без времени суток).
// ══════════════════════════════════════════════════════════════════════════════

// Date представляет календарную дату в UTC (полночь).
// Zero value означает "дата отсутствует" (например, активности ещё не было).
type Date struct {
	t time.Time
}

// NewDate создаёт дату из компонентов.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf усекает момент времени до календарной даты в его локации.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate разбирает дату в формате YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, WrapError("shared", "ParseDate", ErrInvalidFormat, "expected YYYY-MM-DD", err)
	}
	return DateOf(t), nil
}

// IsZero возвращает true, если дата не задана.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time возвращает полночь этой даты в UTC.
func (d Date) Time() time.Time { return d.t }

// Equal сравнивает две даты.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// Before возвращает true, если d раньше other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After возвращает true, если d позже other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// AddDays возвращает дату через n дней.
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysSince возвращает количество календарных дней между датами (d - other).
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t).Hours() / 24)
}

// String возвращает дату в формате YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("2006-01-02")
}
