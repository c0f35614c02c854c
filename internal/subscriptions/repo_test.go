package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/Vantorrr/yauberu-backend/pkg/db/models"
	"github.com/Vantorrr/yauberu-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  address_id TEXT NOT NULL,
  tariff TEXT NOT NULL,
  total_credits INTEGER NOT NULL DEFAULT 0,
  used_credits INTEGER NOT NULL DEFAULT 0,
  schedule_days TEXT NOT NULL DEFAULT '1,3,5',
  default_time_slot TEXT,
  start_date DATE,
  end_date DATE,
  frequency TEXT NOT NULL DEFAULT 'every_other_day',
  is_active INTEGER NOT NULL DEFAULT 1,
  last_generated_date DATE,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(subscriptions).Error)
	return db
}

func seedSubscription(t *testing.T, db *gorm.DB, total, used int, active bool) *models.Subscription {
	t.Helper()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	sub := &models.Subscription{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		AddressID:    uuid.New(),
		Tariff:       enums.TariffMonthly,
		TotalCredits: total,
		UsedCredits:  used,
		ScheduleDays: DefaultScheduleDays,
		StartDate:    &start,
		EndDate:      &end,
		Frequency:    enums.FrequencyEveryOtherDay,
		IsActive:     active,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func TestRepositoryListEligible(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	eligible := seedSubscription(t, db, 15, 4, true)
	seedSubscription(t, db, 15, 15, true)  // exhausted
	seedSubscription(t, db, 15, 0, false)  // inactive

	listed, err := repo.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, eligible.ID, listed[0].ID)
}

func TestRepositoryUpdateCredits(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	sub := seedSubscription(t, db, 15, 14, true)

	require.NoError(t, repo.UpdateCredits(context.Background(), sub.ID, 15, false))

	got, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.UsedCredits)
	assert.False(t, got.IsActive)
	assert.True(t, got.Exhausted())
}

func TestRepositorySetLastGeneratedDate(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	sub := seedSubscription(t, db, 15, 0, true)
	marker := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetLastGeneratedDate(context.Background(), sub.ID, marker))

	got, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastGeneratedDate)
	assert.True(t, got.LastGeneratedDate.Equal(marker))
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryCreateKeepsInactiveFlag(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)

	sub := seedSubscription(t, db, 15, 0, false)

	got, err := repo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "an inactive row must insert as inactive, not fall back to the column default")
}
