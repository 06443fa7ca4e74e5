package billing

import (
	"testing"
	"time"

	"github.com/Wladyslaw13/ScanBotan/testutils"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHasAccess(t *testing.T) {
	future := time.Now().Add(10 * 24 * time.Hour)
	past := time.Now().Add(-time.Hour)

	cases := []struct {
		name   string
		status string
		end    time.Time
		want   bool
	}{
		{"active with remaining period", "active", future, true},
		{"canceled keeps access until period end", "canceled", future, true},
		{"past_due never grants access", "past_due", future, false},
		{"active but period over", "active", past, false},
		{"canceled and period over", "canceled", past, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mock, cleanup := testutils.SetupTestDB(t)
			defer cleanup()

			mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE user_id = \$1`).
				WithArgs("user-uuid", 1).
				WillReturnRows(mock.NewRows(subscriptionColumns).
					AddRow("sub-uuid", "user-uuid", tc.status, tc.end, "yookassa", "", "", time.Now(), time.Now()))

			assert.Equal(t, tc.want, HasAccess("user-uuid"))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHasAccess_NoSubscriptionRow(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE user_id = \$1`).
		WithArgs("user-uuid", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	assert.False(t, HasAccess("user-uuid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasAccess_NoPeriodEnd(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE user_id = \$1`).
		WithArgs("user-uuid", 1).
		WillReturnRows(mock.NewRows(subscriptionColumns).
			AddRow("sub-uuid", "user-uuid", "active", nil, "yookassa", "", "", time.Now(), time.Now()))

	assert.False(t, HasAccess("user-uuid"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
