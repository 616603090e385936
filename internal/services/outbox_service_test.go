package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"private-lending/internal/config"
	"private-lending/internal/db"
	"private-lending/internal/models"
	"private-lending/internal/repository"
	"private-lending/internal/transport"
)

// flakyTransport fails every dispatch while down is set
type flakyTransport struct {
	down bool
	sent []*transport.Message
}

func (f *flakyTransport) Dispatch(ctx context.Context, msg *transport.Message) error {
	if f.down {
		return errors.New("relayer unreachable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *flakyTransport) Register(domain uint32, router common.Hash, h transport.Handler) error {
	return nil
}

func (f *flakyTransport) Close() error { return nil }

func newTestOutbox(t *testing.T, maxAttempts int) (*OutboxService, repository.OutboxRepository, *gorm.DB, *flakyTransport) {
	t.Helper()
	conn, err := db.OpenInMemory(config.RoleIngress)
	require.NoError(t, err)
	repo := repository.NewOutboxRepository(conn)
	ft := &flakyTransport{}
	return NewOutboxService(repo, ft, ingressDomain, ingressRouter, config.OutboxConfig{MaxAttempts: maxAttempts}), repo, conn, ft
}

func TestOutboxRedelivery(t *testing.T) {
	outbox, repo, conn, ft := newTestOutbox(t, 5)
	ctx := context.Background()

	msg, err := outbox.Enqueue(ctx, conn, coreDomain, coreRouter, []byte{0xca, 0xfe})
	require.NoError(t, err)

	ft.down = true
	assert.Error(t, outbox.Deliver(ctx, msg.ID))
	stored, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboundStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.LastError, "unreachable")

	ft.down = false
	n, err := outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, ft.sent, 1)
	assert.Equal(t, []byte{0xca, 0xfe}, ft.sent[0].Body)
	assert.Equal(t, ingressDomain, ft.sent[0].OriginDomain)
	assert.Equal(t, ingressRouter, ft.sent[0].Sender)
	assert.Equal(t, coreRouter, ft.sent[0].Recipient)

	stored, err = repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboundStatusDelivered, stored.Status)

	// delivered messages are never sent again
	require.NoError(t, outbox.Deliver(ctx, msg.ID))
	n, err = outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, ft.sent, 1)
}

func TestOutboxGivesUp(t *testing.T) {
	outbox, repo, conn, ft := newTestOutbox(t, 2)
	ctx := context.Background()
	ft.down = true

	msg, err := outbox.Enqueue(ctx, conn, coreDomain, coreRouter, []byte{0x01})
	require.NoError(t, err)

	_, err = outbox.Flush(ctx)
	require.NoError(t, err)
	_, err = outbox.Flush(ctx)
	require.NoError(t, err)

	stored, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutboundStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)

	ft.down = false
	n, err := outbox.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "failed messages are left for an operator")
}

func TestOutboxRollsBackWithCaller(t *testing.T) {
	outbox, repo, conn, _ := newTestOutbox(t, 5)
	ctx := context.Background()

	errAbort := errors.New("abort")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := outbox.Enqueue(ctx, tx, coreDomain, coreRouter, []byte{0x01}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	count, err := repo.CountByStatus(ctx, models.OutboundStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
