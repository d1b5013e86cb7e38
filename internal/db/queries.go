package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/VinMeld/complaint-portal/internal/models"
)

var ErrDuplicateSurvey = errors.New("survey already submitted")

// Courts lists courthouses ordered by name.
func (s *Store) Courts(ctx context.Context) ([]models.Court, error) {
	rows, err := s.main.QueryContext(ctx, `SELECT id, name FROM courts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	courts := []models.Court{}
	for rows.Next() {
		var c models.Court
		if err := rows.Scan(&c.CourtID, &c.CourtName); err != nil {
			return nil, err
		}
		courts = append(courts, c)
	}
	return courts, rows.Err()
}

// SubmitSurvey stores a survey once per user token.
func (s *Store) SubmitSurvey(ctx context.Context, sv models.Survey) error {
	res, err := s.survey.ExecContext(ctx,
		`INSERT OR IGNORE INTO surveys (user_token, satisfaction, ease_of_use, comments, submitted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sv.UserToken, sv.Satisfaction, sv.EaseOfUse, sv.Comments, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateSurvey
	}
	return nil
}

// RecordReferral counts one accepted submission against a department.
func (s *Store) RecordReferral(ctx context.Context, department, submissionID string, at time.Time) error {
	department = strings.TrimSpace(department)
	if department == "" {
		return errors.New("department required")
	}
	tx, err := s.main.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO departments (department_name) VALUES (?)`, department); err != nil {
		return fmt.Errorf("upsert department: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM departments WHERE department_name = ?`, department).Scan(&id); err != nil {
		return fmt.Errorf("lookup department: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO referrals (department_id, submission_id, referral_date) VALUES (?, ?, ?)`,
		id, submissionID, at.Format("2006-01-02")); err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return tx.Commit()
}

const reportQuery = `
WITH monthly_data AS (
    SELECT department_id,
           CAST(strftime('%Y', referral_date) AS INTEGER) AS year,
           CAST(strftime('%m', referral_date) AS INTEGER) AS month,
           COUNT(*) AS total
    FROM referrals
    WHERE referral_date >= ?
    GROUP BY department_id, year, month
)
SELECT d.department_name,
       COALESCE(curr.total, 0),
       COALESCE(prev.total, 0),
       COALESCE(last_year.total, 0)
FROM departments d
LEFT JOIN monthly_data curr
    ON d.id = curr.department_id AND curr.year = ? AND curr.month = ?
LEFT JOIN monthly_data prev
    ON d.id = prev.department_id AND prev.year = ? AND prev.month = ?
LEFT JOIN monthly_data last_year
    ON d.id = last_year.department_id AND last_year.year = ? AND last_year.month = ?
ORDER BY d.department_name`

// MonthlyReferralReport compares each department's referrals in month/year
// with the previous month and the same month a year earlier.
func (s *Store) MonthlyReferralReport(ctx context.Context, month, year int) ([]models.MonthlyReferralReport, error) {
	prevYear, prevMonth := year, month-1
	if month == 1 {
		prevYear, prevMonth = year-1, 12
	}
	since := fmt.Sprintf("%04d-%02d-01", year-1, month)

	rows, err := s.main.QueryContext(ctx, reportQuery,
		since, year, month, prevYear, prevMonth, year-1, month)
	if err != nil {
		return nil, fmt.Errorf("query referral report: %w", err)
	}
	defer func() { _ = rows.Close() }()

	report := []models.MonthlyReferralReport{}
	for rows.Next() {
		var r models.MonthlyReferralReport
		if err := rows.Scan(&r.DepartmentName, &r.CurrentMonthTotal, &r.PreviousMonthTotal, &r.SameMonthLastYearTotal); err != nil {
			return nil, err
		}
		r.PercentChangeFromPrevMonth = percentChange(r.CurrentMonthTotal, r.PreviousMonthTotal)
		r.PercentChangeFromLastYear = percentChange(r.CurrentMonthTotal, r.SameMonthLastYearTotal)
		report = append(report, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

func percentChange(current, base int) *float64 {
	if base == 0 {
		return nil
	}
	v := math.Round(float64(current-base)*100/float64(base)*100) / 100
	return &v
}
