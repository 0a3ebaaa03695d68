package autopublish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/volunteer-hours/pkg/core/model"
	"github.com/jakechorley/volunteer-hours/pkg/db"
)

// rawSignupStore returns every row regardless of the requested range
type rawSignupStore struct {
	rows []db.EligibleSignup
	from time.Time
	to   time.Time
}

func (r *rawSignupStore) GetSignupsCheckedOutBetween(ctx context.Context, from, to time.Time, statuses []model.SignupStatus) ([]db.EligibleSignup, error) {
	r.from, r.to = from, to
	return r.rows, nil
}

func withCheckOut(es db.EligibleSignup, checkOut time.Time) db.EligibleSignup {
	checkIn := checkOut.Add(-2 * time.Hour)
	es.Signup.CheckInTime = &checkIn
	es.Signup.CheckOutTime = &checkOut
	return es
}

func TestScanWindow(t *testing.T) {
	w := ScanWindow(testNow, 48*time.Hour, 72*time.Hour)

	assert.Equal(t, testNow.Add(-72*time.Hour), w.From)
	assert.Equal(t, testNow.Add(-48*time.Hour), w.To)
	assert.True(t, w.Contains(w.From))
	assert.True(t, w.Contains(w.To))
	assert.False(t, w.Contains(w.From.Add(-time.Second)))
	assert.False(t, w.Contains(w.To.Add(time.Second)))
}

func TestScanner_WindowBoundaries(t *testing.T) {
	p := testProject("p1")
	base := testSignup("s", p, "slot-1", "user-1", "", 2)

	tests := []struct {
		name     string
		checkOut time.Time
		included bool
	}{
		{"exactly 48h ago", testNow.Add(-48 * time.Hour), true},
		{"48h minus 1s ago", testNow.Add(-48*time.Hour + time.Second), false},
		{"exactly 72h ago", testNow.Add(-72 * time.Hour), true},
		{"72h plus 1s ago", testNow.Add(-72*time.Hour - time.Second), false},
		{"60h ago", testNow.Add(-60 * time.Hour), true},
		{"1h ago", testNow.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &rawSignupStore{rows: []db.EligibleSignup{withCheckOut(base, tt.checkOut)}}
			scanner := NewScanner(store, DefaultConfig(), zap.NewNop())

			rows, window, err := scanner.Scan(context.Background(), testNow)
			require.NoError(t, err)

			assert.Equal(t, window.From, store.from)
			assert.Equal(t, window.To, store.to)
			if tt.included {
				assert.Len(t, rows, 1)
			} else {
				assert.Empty(t, rows)
			}
		})
	}
}

func TestScanner_FiltersIneligibleRows(t *testing.T) {
	p := testProject("p1")

	pending := testSignup("pending", p, "slot-1", "user-1", "", 2)
	pending.Signup.Status = model.SignupStatusPending

	noCheckIn := testSignup("no-check-in", p, "slot-1", "user-2", "", 2)
	noCheckIn.Signup.CheckInTime = nil

	approved := testSignup("approved", p, "slot-1", "user-3", "", 2)
	approved.Signup.Status = model.SignupStatusApproved

	attended := testSignup("attended", p, "slot-1", "user-4", "", 2)

	store := &rawSignupStore{rows: []db.EligibleSignup{pending, noCheckIn, approved, attended}}
	scanner := NewScanner(store, DefaultConfig(), zap.NewNop())

	rows, _, err := scanner.Scan(context.Background(), testNow)
	require.NoError(t, err)

	var ids []string
	for _, r := range rows {
		ids = append(ids, r.Signup.ID)
	}
	assert.Equal(t, []string{"approved", "attended"}, ids)
}

func TestScanner_StoreError(t *testing.T) {
	store := newMemStore()
	store.scanErr = errBoom
	scanner := NewScanner(store, DefaultConfig(), zap.NewNop())

	rows, window, err := scanner.Scan(context.Background(), testNow)

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "failed to scan signups")
	assert.Nil(t, rows)
	assert.Equal(t, testNow.Add(-48*time.Hour), window.To)
}
