package memory

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/mucks/proofmarket/internal/domain"
)

var (
	creator = common.HexToAddress("0x0000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func newMarket() domain.Market {
	return domain.Market{
		Creator:      creator,
		Deadline:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatorStake: big.NewInt(100),
		YesPool:      new(big.Int),
		NoPool:       new(big.Int),
		State:        domain.StateOpen,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAssignsDenseIDs(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	for want := int64(0); want < 3; want++ {
		id, err := l.Create(ctx, newMarket())
		require.NoError(err)
		require.Equal(want, id)
	}

	n, err := l.Count(ctx)
	require.NoError(err)
	require.Equal(int64(3), n)

	_, err = l.Get(ctx, 3)
	require.ErrorIs(err, domain.ErrNotFound)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)

	m, err := l.Get(ctx, id)
	require.NoError(err)
	m.YesPool.SetInt64(999)
	m.CreatorStake.SetInt64(999)

	fresh, err := l.Get(ctx, id)
	require.NoError(err)
	require.Zero(fresh.YesPool.Sign())
	require.Equal(big.NewInt(100), fresh.CreatorStake)
}

func TestListOrderAndPagination(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Create(ctx, newMarket())
		require.NoError(err)
	}

	// Newest first.
	all, err := l.List(ctx, domain.ListOpts{})
	require.NoError(err)
	require.Len(all, 5)
	require.Equal(int64(4), all[0].ID)
	require.Equal(int64(0), all[4].ID)

	page, err := l.List(ctx, domain.ListOpts{Offset: 1, Limit: 2})
	require.NoError(err)
	require.Len(page, 2)
	require.Equal(int64(3), page[0].ID)
	require.Equal(int64(2), page[1].ID)

	empty, err := l.List(ctx, domain.ListOpts{Offset: 10})
	require.NoError(err)
	require.Empty(empty)
}

func TestStateTransitions(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()
	at := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)

	// Resolving an open market skips the lock transition.
	require.ErrorIs(l.SetResolved(ctx, id, domain.SideYes, at), domain.ErrConflict)

	require.NoError(l.SetLocked(ctx, id))
	require.ErrorIs(l.SetLocked(ctx, id), domain.ErrConflict)

	require.NoError(l.SetResolved(ctx, id, domain.SideYes, at))
	require.ErrorIs(l.SetResolved(ctx, id, domain.SideNo, at), domain.ErrConflict)

	m, err := l.Get(ctx, id)
	require.NoError(err)
	require.Equal(domain.StateResolved, m.State)
	require.Equal(domain.SideYes, m.WinningSide)
	require.NotNil(m.ResolvedAt)
	require.True(m.ResolvedAt.Equal(at))

	require.ErrorIs(l.SetLocked(ctx, 42), domain.ErrNotFound)
	require.ErrorIs(l.SetResolved(ctx, 42, domain.SideYes, at), domain.ErrNotFound)
}

func TestRecordBetUpdatesPoolAndBet(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)

	require.NoError(l.RecordBet(ctx, id, alice, domain.SideYes, big.NewInt(50)))
	require.NoError(l.RecordBet(ctx, id, alice, domain.SideYes, big.NewInt(25)))
	require.NoError(l.RecordBet(ctx, id, alice, domain.SideNo, big.NewInt(10)))

	m, err := l.Get(ctx, id)
	require.NoError(err)
	require.Equal(big.NewInt(75), m.YesPool)
	require.Equal(big.NewInt(10), m.NoPool)

	b, err := l.GetBet(ctx, id, alice)
	require.NoError(err)
	require.Equal(big.NewInt(75), b.YesAmount)
	require.Equal(big.NewInt(10), b.NoAmount)
	require.False(b.Claimed)

	require.ErrorIs(l.RecordBet(ctx, id, alice, domain.SideNone, big.NewInt(1)), domain.ErrInvalidSide)
	require.ErrorIs(l.RecordBet(ctx, 42, alice, domain.SideYes, big.NewInt(1)), domain.ErrNotFound)
}

func TestRecordBetRejectedOnceNotOpen(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)
	require.NoError(l.SetLocked(ctx, id))

	require.ErrorIs(l.RecordBet(ctx, id, alice, domain.SideYes, big.NewInt(1)), domain.ErrConflict)
}

func TestMarkClaimedExactlyOnce(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)
	require.NoError(l.RecordBet(ctx, id, alice, domain.SideYes, big.NewInt(50)))

	require.ErrorIs(l.MarkClaimed(ctx, id, bob), domain.ErrNotFound)

	require.NoError(l.MarkClaimed(ctx, id, alice))
	require.ErrorIs(l.MarkClaimed(ctx, id, alice), domain.ErrAlreadyClaimed)

	b, err := l.GetBet(ctx, id, alice)
	require.NoError(err)
	require.True(b.Claimed)
}

func TestListByMarketOrdersByBettor(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)
	other, err := l.Create(ctx, newMarket())
	require.NoError(err)

	require.NoError(l.RecordBet(ctx, id, bob, domain.SideNo, big.NewInt(20)))
	require.NoError(l.RecordBet(ctx, id, alice, domain.SideYes, big.NewInt(10)))
	require.NoError(l.RecordBet(ctx, other, alice, domain.SideYes, big.NewInt(5)))

	bets, err := l.ListByMarket(ctx, id)
	require.NoError(err)
	require.Len(bets, 2)
	require.Equal(alice, bets[0].Bettor)
	require.Equal(bob, bets[1].Bettor)
}

func TestAddStakeDoesNotTouchPools(t *testing.T) {
	require := require.New(t)
	l := NewLedger()
	ctx := context.Background()

	id, err := l.Create(ctx, newMarket())
	require.NoError(err)
	require.NoError(l.AddStake(ctx, id, alice, domain.SideYes, big.NewInt(40)))

	m, err := l.Get(ctx, id)
	require.NoError(err)
	require.Zero(m.YesPool.Sign())

	b, err := l.GetBet(ctx, id, alice)
	require.NoError(err)
	require.Equal(big.NewInt(40), b.YesAmount)
}
