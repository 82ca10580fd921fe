package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"attendance-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrNotCheckedIn       = errors.New("not checked in today")
	ErrAlreadyCheckedOut  = errors.New("already checked out today")
	ErrCheckOutNotAfterIn = errors.New("check-out must be later than check-in")
)

const (
	StatusPresent   = "Present"
	StatusCheckedIn = "Checked-in"

	TodayNotCheckedIn = "Not Checked In"
	TodayCheckedIn    = "Checked In"
	TodayCheckedOut   = "Checked Out"

	none       = "none"
	timeLayout = "15:04:05"
)

// Ledger is the only writer of attendance records. It enforces one record
// per user per local calendar day and the check-in -> check-out order.
type Ledger struct {
	db    *gorm.DB
	now   func() time.Time
	locks *userLocks
}

type Option func(*Ledger)

// WithClock replaces time.Now. The location of the returned times decides
// where a day starts.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:    db,
		now:   time.Now,
		locks: newUserLocks(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// HistoryEntry is one attendance record as shown to its owner.
type HistoryEntry struct {
	Date         string   `json:"date"`
	CheckInTime  string   `json:"checkInTime"`
	CheckOutTime string   `json:"checkOutTime"`
	Status       string   `json:"status"`
	TotalHours   *float64 `json:"totalHours,omitempty"`
}

// Overview is the dashboard summary for one user.
type Overview struct {
	TodayStatus string
	Present     int64
	Incomplete  int64
}

func (l *Ledger) CheckIn(ctx context.Context, userID uint) (*models.Attendance, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	now := l.now()
	db := l.db.WithContext(ctx)

	if err := l.ensureUser(db, userID); err != nil {
		return nil, err
	}

	existing, err := l.today(db, userID, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyCheckedIn
	}

	rec := models.Attendance{
		UserID:    userID,
		WorkDate:  dayKey(now),
		CheckIn:   &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("create attendance: %w", err)
	}
	return &rec, nil
}

func (l *Ledger) CheckOut(ctx context.Context, userID uint) (*models.Attendance, error) {
	unlock := l.locks.lock(userID)
	defer unlock()

	now := l.now()
	db := l.db.WithContext(ctx)

	rec, err := l.today(db, userID, now)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotCheckedIn
	}
	if rec.CheckOut != nil {
		return nil, ErrAlreadyCheckedOut
	}
	if rec.CheckIn == nil || !now.After(*rec.CheckIn) {
		return nil, ErrCheckOutNotAfterIn
	}

	// check_out IS NULL guards against another process closing the record first.
	res := db.Model(rec).Where("check_out IS NULL").Updates(map[string]interface{}{
		"check_out":  now,
		"updated_at": now,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("update attendance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyCheckedOut
	}
	rec.CheckOut = &now
	rec.UpdatedAt = now
	return rec, nil
}

// History returns every record of the user, newest check-in first.
func (l *Ledger) History(ctx context.Context, userID uint) ([]HistoryEntry, error) {
	var recs []models.Attendance
	if err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("work_date DESC").
		Order("check_in DESC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}

	out := make([]HistoryEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, entryFor(r))
	}
	return out, nil
}

// Overview reports today's state and the counts for the current month.
// A record without check-out counts as incomplete only once its day is over.
func (l *Ledger) Overview(ctx context.Context, userID uint) (Overview, error) {
	now := l.now()
	db := l.db.WithContext(ctx)

	ov := Overview{TodayStatus: TodayNotCheckedIn}
	rec, err := l.today(db, userID, now)
	if err != nil {
		return ov, err
	}
	if rec != nil {
		ov.TodayStatus = TodayCheckedIn
		if rec.CheckOut != nil {
			ov.TodayStatus = TodayCheckedOut
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from, to := dayKey(monthStart), dayKey(monthStart.AddDate(0, 1, 0))
	today := dayKey(now)

	month := db.Model(&models.Attendance{}).
		Where("user_id = ? AND work_date >= ? AND work_date < ?", userID, from, to).
		Session(&gorm.Session{})
	if err := month.
		Where("check_out IS NOT NULL").
		Count(&ov.Present).Error; err != nil {
		return ov, fmt.Errorf("count present: %w", err)
	}
	if err := month.
		Where("check_out IS NULL AND work_date < ?", today).
		Count(&ov.Incomplete).Error; err != nil {
		return ov, fmt.Errorf("count incomplete: %w", err)
	}
	return ov, nil
}

func (l *Ledger) ensureUser(db *gorm.DB, userID uint) error {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if count == 0 {
		return ErrUserNotFound
	}
	return nil
}

// today returns the user's record for the day containing now, or nil.
func (l *Ledger) today(db *gorm.DB, userID uint, now time.Time) (*models.Attendance, error) {
	var rec models.Attendance
	err := db.Where("user_id = ? AND work_date = ?", userID, dayKey(now)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find today's attendance: %w", err)
	}
	return &rec, nil
}

func entryFor(r models.Attendance) HistoryEntry {
	e := HistoryEntry{
		Date:         r.WorkDate,
		CheckInTime:  none,
		CheckOutTime: none,
		Status:       StatusCheckedIn,
	}
	if r.CheckIn != nil {
		e.CheckInTime = r.CheckIn.Format(timeLayout)
	}
	if r.CheckOut != nil {
		e.CheckOutTime = r.CheckOut.Format(timeLayout)
	}
	if r.CheckIn != nil && r.CheckOut != nil {
		e.Status = StatusPresent
		h := TotalHours(*r.CheckIn, *r.CheckOut)
		e.TotalHours = &h
	}
	return e
}

// TotalHours is out - in in hours, rounded to two decimals.
func TotalHours(in, out time.Time) float64 {
	return math.Round(out.Sub(in).Hours()*100) / 100
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return StartOfDay(t).Format(models.WorkDateLayout)
}
