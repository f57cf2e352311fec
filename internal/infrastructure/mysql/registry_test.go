package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-core/internal/domain"
)

var auctionColumns = []string{"bid", "accepts", "dispenses", "start_block", "end_block"}

func TestRegistry_AuctionInfo(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectQuery(selectAuctionQuery).WithArgs(uint64(7)).WillReturnRows(
		sqlmock.NewRows(auctionColumns).
			AddRow(`{"account":"alice","currency":"CUR1","amount":50}`, `"CUR1"`, nil, int64(0), int64(100)))

	info, err := reg.AuctionInfo(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, &domain.Bid[string, string, uint64]{Account: "alice", Currency: "CUR1", Amount: 50}, info.Bid)
	assert.Equal(t, ptr("CUR1"), info.Accepts)
	assert.Nil(t, info.Dispenses)
	assert.Equal(t, uint64(0), info.Start)
	assert.Equal(t, ptr(uint64(100)), info.End)
}

func TestRegistry_AuctionInfoOpenEndedWithoutBid(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectQuery(selectAuctionQuery).WithArgs(uint64(1)).WillReturnRows(
		sqlmock.NewRows(auctionColumns).AddRow(nil, nil, nil, int64(5), nil))

	info, err := reg.AuctionInfo(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &domain.AuctionInfo[string, string, uint64, uint64]{Start: 5}, info)
}

func TestRegistry_AuctionInfoMissing(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectQuery(selectAuctionQuery).WithArgs(uint64(9)).WillReturnRows(sqlmock.NewRows(auctionColumns))

	info, err := reg.AuctionInfo(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRegistry_AuctionInfoErrors(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectQuery(selectAuctionQuery).WithArgs(uint64(1)).WillReturnRows(
		sqlmock.NewRows(auctionColumns).AddRow("{broken", nil, nil, int64(0), nil))
	mock.ExpectQuery(selectAuctionQuery).WithArgs(uint64(2)).WillReturnError(errors.New("connection reset"))

	_, err := reg.AuctionInfo(context.Background(), 1)
	assert.ErrorContains(t, err, "decode bid")

	_, err = reg.AuctionInfo(context.Background(), 2)
	assert.ErrorContains(t, err, "connection reset")
}

func TestRegistry_UpdateAuction(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAuctionQuery).WithArgs(uint64(7)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(updateAuctionQuery).
		WithArgs(`{"account":"bob","currency":"CUR1","amount":75}`, `"CUR1"`, nil, uint64(0), uint64(103), sqlmock.AnyArg(), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := reg.UpdateAuction(context.Background(), 7, domain.AuctionInfo[string, string, uint64, uint64]{
		Bid:     &domain.Bid[string, string, uint64]{Account: "bob", Currency: "CUR1", Amount: 75},
		Accepts: ptr("CUR1"),
		End:     ptr(uint64(103)),
	})
	require.NoError(t, err)
}

func TestRegistry_UpdateAuctionNotFound(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockAuctionQuery).WithArgs(uint64(4)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := reg.UpdateAuction(context.Background(), 4, domain.AuctionInfo[string, string, uint64, uint64]{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_NewAuction(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSequenceQuery).WithArgs(DefaultSequence).WillReturnRows(sqlmock.NewRows([]string{"next_id"}))
	mock.ExpectExec(insertAuctionQuery).
		WithArgs(uint64(0), nil, `"CUR1"`, nil, uint64(10), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertSequenceQuery).WithArgs(DefaultSequence, uint64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSequenceQuery).WithArgs(DefaultSequence).WillReturnRows(sqlmock.NewRows([]string{"next_id"}).AddRow(int64(1)))
	mock.ExpectExec(insertAuctionQuery).
		WithArgs(uint64(1), nil, nil, nil, uint64(0), uint64(50), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsertSequenceQuery).WithArgs(DefaultSequence, uint64(2)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	id, err := reg.NewAuction(context.Background(), 10, nil, ptr("CUR1"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), id)

	id, err = reg.NewAuction(context.Background(), 0, ptr(uint64(50)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestRegistry_NewAuctionIdsExhausted(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint8, string, string, uint64, uint64](db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSequenceQuery).WithArgs(DefaultSequence).WillReturnRows(sqlmock.NewRows([]string{"next_id"}).AddRow(int64(255)))
	mock.ExpectRollback()

	_, err := reg.NewAuction(context.Background(), 0, nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrIdsExhausted)
}

func TestRegistry_NewAuctionInsertFailure(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSequenceQuery).WithArgs(DefaultSequence).WillReturnRows(sqlmock.NewRows([]string{"next_id"}).AddRow(int64(3)))
	mock.ExpectExec(insertAuctionQuery).WillReturnError(errors.New("duplicate entry"))
	mock.ExpectRollback()

	_, err := reg.NewAuction(context.Background(), 0, nil, nil, nil)
	assert.ErrorContains(t, err, "duplicate entry")
}

func TestRegistry_RemoveAuction(t *testing.T) {
	db, mock := newMock(t)
	reg := NewRegistry[uint32, string, string, uint64, uint64](db)

	mock.ExpectExec(deleteAuctionQuery).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteAuctionQuery).WithArgs(uint64(7)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, reg.RemoveAuction(context.Background(), 7))
	require.NoError(t, reg.RemoveAuction(context.Background(), 7))
}

func TestEnsureSchema(t *testing.T) {
	db, mock := newMock(t)
	for _, stmt := range schema {
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, EnsureSchema(context.Background(), db))
}

func TestEnsureSchemaFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(schema[0]).WillReturnError(errors.New("access denied"))

	assert.ErrorContains(t, EnsureSchema(context.Background(), db), "create schema")
}
