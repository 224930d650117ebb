package database

import (
	"database/sql"
	"fmt"
	"time"
)

type budgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

func (r *budgetRepository) GetOrCreate(maxSends int) (DailyBudget, error) {
	date := today()
	_, err := r.db.Exec(`
		INSERT INTO daily_budget (date, sends_used, max_sends)
		VALUES (?, 0, ?)
		ON CONFLICT(date) DO NOTHING
	`, date, maxSends)
	if err != nil {
		return DailyBudget{}, fmt.Errorf("failed to create daily budget: %w", err)
	}

	var budget DailyBudget
	err = r.db.QueryRow(`
		SELECT date, sends_used, max_sends FROM daily_budget WHERE date = ?
	`, date).Scan(&budget.Date, &budget.SendsUsed, &budget.MaxSends)
	if err != nil {
		return DailyBudget{}, fmt.Errorf("failed to read daily budget: %w", err)
	}
	return budget, nil
}

// IncrementSends is a conditional update so concurrent senders can never push
// the counter past the ceiling.
func (r *budgetRepository) IncrementSends() (bool, error) {
	res, err := r.db.Exec(`
		UPDATE daily_budget
		SET sends_used = sends_used + 1
		WHERE date = ? AND sends_used < max_sends
	`, today())
	if err != nil {
		return false, fmt.Errorf("failed to increment daily sends: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read increment result: %w", err)
	}
	return affected > 0, nil
}

func (r *budgetRepository) GetToday() (*DailyBudget, error) {
	var budget DailyBudget
	err := r.db.QueryRow(`
		SELECT date, sends_used, max_sends FROM daily_budget WHERE date = ?
	`, today()).Scan(&budget.Date, &budget.SendsUsed, &budget.MaxSends)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read today's budget: %w", err)
	}
	return &budget, nil
}
