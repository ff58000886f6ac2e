package relica

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/courier"
	"github.com/coregx/courier/model"
)

func newSubscriber(t *testing.T, email, name string) model.Subscriber {
	t.Helper()
	e, err := model.ParseSubscriberEmail(email)
	require.NoError(t, err)
	n, err := model.ParseSubscriberName(name)
	require.NoError(t, err)
	return model.NewSubscriber(e, n)
}

func TestSubscriberRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewSubscriberRepository(db, "sqlite3")

	saved, err := repo.Save(ctx, newSubscriber(t, "ursula@example.com", "Ursula"))
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	byEmail, err := repo.FindByEmail(ctx, "ursula@example.com")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byEmail.ID)
	assert.Equal(t, model.SubscriberPending, byEmail.Status)

	byToken, err := repo.FindByConfirmationToken(ctx, saved.ConfirmationToken)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byToken.ID)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, courier.IsNoData(err))

	_, err = repo.Save(ctx, newSubscriber(t, "ursula@example.com", "Another"))
	assert.True(t, courier.HasCode(err, courier.ErrCodeDatabase), "email is unique")
}

func TestSubscriberRepository_ListConfirmedEmails(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	repo := NewSubscriberRepository(db, "sqlite3")

	emails, err := repo.ListConfirmedEmails(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)

	first, err := repo.Save(ctx, newSubscriber(t, "first@example.com", "First"))
	require.NoError(t, err)
	_, err = repo.Save(ctx, newSubscriber(t, "pending@example.com", "Pending"))
	require.NoError(t, err)
	second, err := repo.Save(ctx, newSubscriber(t, "second@example.com", "Second"))
	require.NoError(t, err)

	for _, s := range []model.Subscriber{first, second} {
		s.Confirm()
		_, err := repo.Save(ctx, s)
		require.NoError(t, err)
	}

	emails, err = repo.ListConfirmedEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"first@example.com", "second@example.com"}, emails)
}
