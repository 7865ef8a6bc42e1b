package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "pesaflow/internal/errors"
	"pesaflow/internal/gateway"
	"pesaflow/internal/models"
	"pesaflow/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

func (m *mockGateway) CheckStatus(ctx context.Context, id string) (*gateway.Response, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

func (m *mockGateway) PollStatus(ctx context.Context, id string, opts gateway.PollOptions) (*gateway.Response, error) {
	args := m.Called(ctx, id, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[uint]*models.Account
	rows     []*models.Transaction
}

func newFakeAccounts(accounts ...*models.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: map[uint]*models.Account{}}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) Create(a *models.Account) error {
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeAccounts) GetByID(id uint) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccounts) GetByEmail(email string) (*models.Account, error) {
	return nil, repositories.ErrAccountNotFound
}

func (f *fakeAccounts) GetByPhone(phone string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Phone == phone {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (f *fakeAccounts) Update(a *models.Account) error { return nil }

func (f *fakeAccounts) IncrementBalance(id uint, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	a.Balance += delta
	return nil
}

func (f *fakeAccounts) DebitIfSufficient(id uint, amount int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok || a.Balance < amount {
		return false, nil
	}
	a.Balance -= amount
	return true, nil
}

func (f *fakeAccounts) CreditAgentSettlement(id uint, amount, commission int64) error { return nil }

func (f *fakeAccounts) SetAvailability(id uint, available bool, lat, lng, accuracy float64, hash string, at time.Time) error {
	return nil
}

func (f *fakeAccounts) Lock(id uint, reason string) error   { return nil }
func (f *fakeAccounts) Unlock(id uint) error                { return nil }
func (f *fakeAccounts) IncrementTokenVersion(id uint) error { return nil }

func (f *fakeAccounts) ListAvailableAgents(hashes []string, limit int) ([]*models.Account, error) {
	return nil, nil
}

func (f *fakeAccounts) CreateTransaction(tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeAccounts) ExecuteInTransaction(fn func(repositories.AccountRepository) error) error {
	return fn(f)
}

type fakeTxns struct {
	mu             sync.Mutex
	rows           []*models.Transaction
	reconciliation []*models.ReconciliationItem
}

func (f *fakeTxns) Create(tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = uint(len(f.rows) + 1)
	f.rows = append(f.rows, tx)
	return nil
}

func (f *fakeTxns) GetByID(id uint) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeTxns) GetByReference(ref string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Reference == ref {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeTxns) MarkCompleted(id uint, code string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.TransactionStatusPending {
			r.Status = models.TransactionStatusCompleted
			r.GatewayConfirmationCode = code
			r.CompletedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTxns) MarkFailed(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.TransactionStatusPending {
			r.Status = models.TransactionStatusFailed
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTxns) SetGatewayID(id uint, gatewayID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.GatewayTransactionID = gatewayID
		}
	}
	return nil
}

func (f *fakeTxns) HistoryByUser(userID uint, limit, offset int) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeTxns) CommissionExists(requestID uint) (bool, error) { return false, nil }

func (f *fakeTxns) EnqueueReconciliation(item *models.ReconciliationItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciliation = append(f.reconciliation, item)
	return nil
}

func (f *fakeTxns) stored(id uint) *models.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(userID uint, kind string, payload map[string]interface{}) {}

type fakeCache struct {
	mu      sync.Mutex
	dropped []uint
}

func (f *fakeCache) InvalidateAccountID(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = append(f.dropped, id)
	return nil
}

func (f *fakeCache) hasDropped(id uint) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.dropped {
		if d == id {
			return true
		}
	}
	return false
}

func sender(id uint, balance int64) *models.Account {
	a := &models.Account{
		Email:   "sender@test.dev",
		Name:    "Sender",
		Phone:   "+254700000010",
		Balance: balance,
	}
	a.ID = id
	return a
}

func recipient(id uint, phone string) *models.Account {
	a := &models.Account{
		Email: "recipient@test.dev",
		Name:  "Recipient",
		Phone: phone,
	}
	a.ID = id
	return a
}

func newTestService(accounts *fakeAccounts, gw GatewayClient) (Service, *fakeTxns, *fakeCache) {
	txns := &fakeTxns{}
	cache := &fakeCache{}
	return NewService(accounts, txns, gw, nopNotifier{}, cache, gateway.PollOptions{}), txns, cache
}

func TestWithdrawValidation(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	svc, _, _ := newTestService(newFakeAccounts(sender(1, 100000)), gw)

	_, err := svc.Withdraw(ctx, 1, "+254711000000", MinWithdrawAmount-1, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	_, err = svc.Withdraw(ctx, 1, "+254711000000", MaxWithdrawAmount+1, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	_, err = svc.Withdraw(ctx, 1, "not-a-phone", 1000, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	_, err = svc.Withdraw(ctx, 1, "+254711000000", 200000, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientBalance)

	locked := sender(2, 100000)
	locked.IsLocked = true
	svc2, _, _ := newTestService(newFakeAccounts(locked), gw)
	_, err = svc2.Withdraw(ctx, 2, "+254711000000", 1000, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrDisputeLocked)

	gw.AssertNotCalled(t, "Initiate")
}

func TestWithdrawImmediateSuccess(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)

	gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
		TransactionID: "GW-1",
		Status:        gateway.StatusSuccess,
	}, nil)
	gw.On("CheckStatus", mock.Anything, "GW-1").Return(&gateway.Response{
		TransactionID:    "GW-1",
		Status:           gateway.StatusSuccess,
		ConfirmationCode: "QA12BC34",
	}, nil)

	svc, txns, cache := newTestService(accounts, gw)

	tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "school fees")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, "GW-1", tx.GatewayTransactionID)
	assert.Equal(t, "QA12BC34", tx.GatewayConfirmationCode)
	require.NotNil(t, tx.CompletedAt)

	a, _ := accounts.GetByID(1)
	assert.Equal(t, int64(95000), a.Balance)
	assert.True(t, cache.hasDropped(1), "debited wallet must leave the cache")

	stored := txns.stored(tx.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusCompleted, stored.Status)

	gw.AssertExpectations(t)
	gw.AssertNotCalled(t, "PollStatus")
}

func TestWithdrawConfirmatoryCheckFailureTrustsInitiate(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)

	gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
		TransactionID: "GW-2",
		Status:        gateway.StatusCompleted,
	}, nil)
	gw.On("CheckStatus", mock.Anything, "GW-2").Return(nil, errors.New("connection reset"))

	svc, _, _ := newTestService(accounts, gw)

	tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)

	a, _ := accounts.GetByID(1)
	assert.Equal(t, int64(95000), a.Balance)
}

func TestWithdrawConfirmatoryCheckWalksBackToPending(t *testing.T) {
	// The initiate response claims success but the confirmatory check
	// reports pending: the outcome is not terminal and must go through
	// polling, never straight to failed.
	ctx := context.Background()

	t.Run("resolves through polling", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		gw := new(mockGateway)
		gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-8",
			Status:        gateway.StatusSuccess,
		}, nil)
		gw.On("CheckStatus", mock.Anything, "GW-8").Return(&gateway.Response{
			TransactionID: "GW-8",
			Status:        gateway.StatusPending,
		}, nil)
		gw.On("PollStatus", mock.Anything, "GW-8", mock.Anything).Return(&gateway.Response{
			TransactionID:    "GW-8",
			Status:           gateway.StatusSuccess,
			ConfirmationCode: "TH34JK56",
		}, nil)

		svc, _, _ := newTestService(accounts, gw)

		tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		assert.Equal(t, "TH34JK56", tx.GatewayConfirmationCode)

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(95000), a.Balance)
		gw.AssertExpectations(t)
	})

	t.Run("exhausted polling leaves the row pending", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		gw := new(mockGateway)
		gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-9",
			Status:        gateway.StatusSuccess,
		}, nil)
		gw.On("CheckStatus", mock.Anything, "GW-9").Return(&gateway.Response{
			TransactionID: "GW-9",
			Status:        gateway.StatusPending,
		}, nil)
		gw.On("PollStatus", mock.Anything, "GW-9", mock.Anything).Return(nil, gateway.ErrPollExhausted)

		svc, txns, cache := newTestService(accounts, gw)

		tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
		assert.ErrorIs(t, err, pkgerrors.ErrVerificationTimeout)
		require.NotNil(t, tx)

		stored := txns.stored(tx.ID)
		require.NotNil(t, stored)
		assert.Equal(t, models.TransactionStatusPending, stored.Status, "unresolved outcome must not finalize as failed")

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(100000), a.Balance)
		assert.Empty(t, cache.dropped)
	})
}

func TestWithdrawInitiateFailure(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)
	gw.On("Initiate", mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout")).Once()

	svc, txns, _ := newTestService(accounts, gw)

	tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrGateway)
	require.NotNil(t, tx)
	assert.Equal(t, models.TransactionStatusFailed, tx.Status)

	a, _ := accounts.GetByID(1)
	assert.Equal(t, int64(100000), a.Balance, "failed initiate must not move money")

	stored := txns.stored(tx.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusFailed, stored.Status)

	// One call only: initiate is never retried.
	gw.AssertNumberOfCalls(t, "Initiate", 1)
}

func TestWithdrawMissingGatewayReference(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)
	gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
		Status: gateway.StatusPending,
	}, nil)

	svc, txns, _ := newTestService(accounts, gw)

	tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
	assert.ErrorIs(t, err, pkgerrors.ErrGatewayReferenceMissing)
	require.NotNil(t, tx)

	stored := txns.stored(tx.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.TransactionStatusPending, stored.Status, "untrackable row stays pending")

	a, _ := accounts.GetByID(1)
	assert.Equal(t, int64(100000), a.Balance)
	gw.AssertNotCalled(t, "PollStatus")
}

func TestWithdrawPollPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("poll resolves to success", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		gw := new(mockGateway)
		gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-3",
			Status:        gateway.StatusPending,
		}, nil)
		gw.On("PollStatus", mock.Anything, "GW-3", mock.Anything).Return(&gateway.Response{
			TransactionID:    "GW-3",
			Status:           gateway.StatusSuccess,
			ConfirmationCode: "RC56DE78",
		}, nil)

		svc, _, _ := newTestService(accounts, gw)

		tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		assert.Equal(t, "RC56DE78", tx.GatewayConfirmationCode)

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(95000), a.Balance)
	})

	t.Run("poll exhaustion leaves transaction pending", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		gw := new(mockGateway)
		gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-4",
			Status:        gateway.StatusPending,
		}, nil)
		gw.On("PollStatus", mock.Anything, "GW-4", mock.Anything).Return(nil, gateway.ErrPollExhausted)

		svc, txns, _ := newTestService(accounts, gw)

		tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
		assert.ErrorIs(t, err, pkgerrors.ErrVerificationTimeout)
		require.NotNil(t, tx)

		stored := txns.stored(tx.ID)
		require.NotNil(t, stored)
		assert.Equal(t, models.TransactionStatusPending, stored.Status)

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(100000), a.Balance, "unresolved outcome must not move money")
	})

	t.Run("poll resolves to failure", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		gw := new(mockGateway)
		gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-5",
			Status:        gateway.StatusPending,
		}, nil)
		gw.On("PollStatus", mock.Anything, "GW-5", mock.Anything).Return(&gateway.Response{
			TransactionID: "GW-5",
			Status:        gateway.StatusFailed,
		}, nil)

		svc, txns, _ := newTestService(accounts, gw)

		tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
		assert.ErrorIs(t, err, pkgerrors.ErrGateway)
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionStatusFailed, tx.Status)

		stored := txns.stored(tx.ID)
		assert.Equal(t, models.TransactionStatusFailed, stored.Status)

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(100000), a.Balance)
	})
}

func TestSendInternalRail(t *testing.T) {
	ctx := context.Background()

	t.Run("settles synchronously", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000), recipient(2, "+254722000000"))
		gw := new(mockGateway)
		svc, _, cache := newTestService(accounts, gw)

		tx, err := svc.Send(ctx, 1, "+254722000000", 3000, models.NetworkInternal, "lunch")
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		require.NotNil(t, tx.ToUserID)
		assert.Equal(t, uint(2), *tx.ToUserID)

		from, _ := accounts.GetByID(1)
		to, _ := accounts.GetByID(2)
		assert.Equal(t, int64(97000), from.Balance)
		assert.Equal(t, int64(3000), to.Balance)
		assert.True(t, cache.hasDropped(1))
		assert.True(t, cache.hasDropped(2))

		gw.AssertNotCalled(t, "Initiate")
	})

	t.Run("unknown recipient rejected", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		svc, _, _ := newTestService(accounts, new(mockGateway))

		_, err := svc.Send(ctx, 1, "+254722000000", 3000, models.NetworkInternal, "")
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)
	})

	t.Run("self-send rejected", func(t *testing.T) {
		accounts := newFakeAccounts(sender(1, 100000))
		svc, _, _ := newTestService(accounts, new(mockGateway))

		_, err := svc.Send(ctx, 1, "+254700000010", 3000, models.NetworkInternal, "")
		assert.ErrorIs(t, err, pkgerrors.ErrValidation)

		a, _ := accounts.GetByID(1)
		assert.Equal(t, int64(100000), a.Balance)
	})
}

func TestSendExternal(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)
	gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
		TransactionID: "GW-6",
		Status:        gateway.StatusSuccess,
	}, nil)
	gw.On("CheckStatus", mock.Anything, "GW-6").Return(&gateway.Response{
		TransactionID:    "GW-6",
		Status:           gateway.StatusSuccess,
		ConfirmationCode: "SD90FG12",
	}, nil)

	svc, _, _ := newTestService(accounts, gw)

	tx, err := svc.Send(ctx, 1, "+254733000000", 2500, models.NetworkAirtel, "rent")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, models.TransactionTypeSend, tx.Type)

	a, _ := accounts.GetByID(1)
	assert.Equal(t, int64(97500), a.Balance)
}

func TestFinalizeDebitGuardDiscrepancy(t *testing.T) {
	// The gateway paid out but a concurrent spend drained the wallet
	// before our debit: the transaction still completes and the gap is
	// queued for reconciliation.
	ctx := context.Background()
	accounts := newFakeAccounts(sender(1, 100000))
	gw := new(mockGateway)
	gw.On("Initiate", mock.Anything, mock.Anything).Return(&gateway.Response{
		TransactionID: "GW-7",
		Status:        gateway.StatusSuccess,
	}, nil)
	gw.On("CheckStatus", mock.Anything, "GW-7").Run(func(args mock.Arguments) {
		// Drain the wallet mid-flight.
		accounts.mu.Lock()
		accounts.accounts[1].Balance = 0
		accounts.mu.Unlock()
	}).Return(&gateway.Response{
		TransactionID: "GW-7",
		Status:        gateway.StatusSuccess,
	}, nil)

	svc, txns, _ := newTestService(accounts, gw)

	tx, err := svc.Withdraw(ctx, 1, "+254711000000", 5000, models.NetworkMPesa, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)

	require.Len(t, txns.reconciliation, 1)
	assert.Equal(t, tx.ID, txns.reconciliation[0].RequestID)
}
