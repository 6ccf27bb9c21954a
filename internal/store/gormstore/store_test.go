package gormstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"umbra_payment/internal/db"
	"umbra_payment/internal/domain"
	"umbra_payment/internal/ledger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB connects to the MySQL database named by GORMSTORE_TEST_DSN,
// e.g. root:secret@tcp(127.0.0.1:3306)/umbra_test?parseTime=true
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("GORMSTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("GORMSTORE_TEST_DSN not set")
	}
	conn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func TestConcurrentSpendsAgainstMySQL(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(New(conn), ledger.Options{AutoProvision: true, OpTimeout: 10 * time.Second})
	ctx := context.Background()
	user := "it-" + uuid.NewString()[:8]

	_, err := l.TopUp(ctx, user, 100, "seed", nil)
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Spend(ctx, user, 9, fmt.Sprintf("s-%d", i), nil); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 11, ok)
	w, err := l.GetWallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.Balance)

	rec, err := l.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, rec.Mismatch)
}

func TestReplayAgainstMySQL(t *testing.T) {
	conn := openTestDB(t)
	st := New(conn)
	l := ledger.New(st, ledger.Options{AutoProvision: false})
	ctx := context.Background()
	user := "it-" + uuid.NewString()[:8]

	_, err := l.GetWallet(ctx, user)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)

	first, err := l.TopUp(ctx, user, 25, "t1", map[string]interface{}{"source": "card"})
	require.NoError(t, err)
	again, err := l.TopUp(ctx, user, 25, "t1", nil)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "card", again.Metadata["source"])

	_, err = l.TopUp(ctx, user, 26, "t1", nil)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	history, err := st.History(ctx, user)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConcurrentFirstWritersAgainstMySQL(t *testing.T) {
	conn := openTestDB(t)
	l := ledger.New(New(conn), ledger.Options{AutoProvision: true, OpTimeout: 10 * time.Second})
	ctx := context.Background()
	user := "it-" + uuid.NewString()[:8]

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.TopUp(ctx, user, 5, fmt.Sprintf("t-%d", i), nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	w, err := l.GetWallet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Balance)
	assert.Equal(t, int64(20), w.Version)
}
