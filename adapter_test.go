package ollie

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func TestSaveAssignsIdentityOnInsert(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	note := &Note{Title: "first", CreatedAt: time.UnixMilli(1700000000000)}
	id, err := session.Save(ctx, note)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, note.ID)
}

func TestSecondSaveUpdatesInsteadOfInserting(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	note := &Note{Title: "first", CreatedAt: time.UnixMilli(1700000000000)}
	id, err := session.Save(ctx, note)
	require.NoError(t, err)

	note.Title = "renamed"
	again, err := session.Save(ctx, note)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.EqualValues(t, 1, countRows(t, session, &Note{}))

	loaded, err := session.FindByID(ctx, &Note{}, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", loaded.(*Note).Title)
}

func TestRoundTripEveryColumnKind(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	hint := "remember"
	saved := &Payload{
		Data:  []byte{0xde, 0xad},
		Ratio: 2.5,
		Scale: 0.25,
		Total: 42,
		Big:   1 << 40,
		Small: 7,
		Label: "payload",
		Hint:  &hint,
		Score: null.IntFrom(99),
	}

	id, err := session.Save(ctx, saved)
	require.NoError(t, err)

	got, err := session.FindByID(ctx, &Payload{}, id)
	require.NoError(t, err)

	loaded := got.(*Payload)
	assert.Equal(t, saved.Data, loaded.Data)
	assert.Equal(t, saved.Ratio, loaded.Ratio)
	assert.Equal(t, saved.Scale, loaded.Scale)
	assert.Equal(t, saved.Total, loaded.Total)
	assert.Equal(t, saved.Big, loaded.Big)
	assert.Equal(t, saved.Small, loaded.Small)
	assert.Equal(t, saved.Label, loaded.Label)
	require.NotNil(t, loaded.Hint)
	assert.Equal(t, hint, *loaded.Hint)
	assert.Equal(t, saved.Score, loaded.Score)
}

func TestRoundTripNullableForms(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	id, err := session.Save(ctx, &Payload{Label: "empty"})
	require.NoError(t, err)

	got, err := session.FindByID(ctx, &Payload{}, id)
	require.NoError(t, err)

	loaded := got.(*Payload)
	assert.Nil(t, loaded.Hint)
	assert.False(t, loaded.Score.Valid)
}

func TestRoundTripTypeAdapterColumns(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	created := time.UnixMilli(1700000012345)
	id, err := session.Save(ctx, &Note{Title: "t", Pinned: true, CreatedAt: created})
	require.NoError(t, err)

	got, err := session.FindByID(ctx, &Note{}, id)
	require.NoError(t, err)

	loaded := got.(*Note)
	assert.True(t, loaded.Pinned)
	assert.True(t, created.Equal(loaded.CreatedAt))
}

func TestNullModelReferenceRoundTrip(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	id, err := session.Save(ctx, &Person{Name: "A"})
	require.NoError(t, err)

	adapter, err := session.Registry().Adapter(&Person{})
	require.NoError(t, err)

	values, err := adapter.Values(&Person{Name: "A"})
	require.NoError(t, err)
	assert.Nil(t, values["manager"])

	got, err := session.FindByID(ctx, &Person{}, id)
	require.NoError(t, err)
	assert.Nil(t, got.(*Person).Manager)
}

func TestModelReferenceStoresIdentifier(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	boss := &Person{Name: "A"}
	bossID, err := session.Save(ctx, boss)
	require.NoError(t, err)

	workerID, err := session.Save(ctx, &Person{Name: "B", Manager: boss})
	require.NoError(t, err)

	adapter, err := session.Registry().Adapter(&Person{})
	require.NoError(t, err)

	values, err := adapter.Values(&Person{Name: "B", Manager: boss})
	require.NoError(t, err)
	assert.Equal(t, bossID, values["manager"])

	// loading the referrer resolves the reference to the cache's canonical
	// instance for the referenced identity
	worker, err := session.FindByID(ctx, &Person{}, workerID)
	require.NoError(t, err)

	direct, err := session.FindByID(ctx, &Person{}, bossID)
	require.NoError(t, err)
	assert.Same(t, direct, worker.(*Person).Manager)
	assert.Equal(t, "A", worker.(*Person).Manager.Name)
}

func TestUnsavedModelReferenceStoresNull(t *testing.T) {
	session := newTestSession(t)

	adapter, err := session.Registry().Adapter(&Person{})
	require.NoError(t, err)

	values, err := adapter.Values(&Person{Name: "B", Manager: &Person{Name: "nobody"}})
	require.NoError(t, err)
	assert.Nil(t, values["manager"])
}

func TestDeleteRemovesRow(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	person := &Person{Name: "A"}
	_, err := session.Save(ctx, person)
	require.NoError(t, err)

	require.NoError(t, session.Delete(ctx, person))
	assert.EqualValues(t, 0, countRows(t, session, &Person{}))
}

func TestDeleteWithoutIdentityFailsFast(t *testing.T) {
	session := newTestSession(t)

	err := session.Delete(context.Background(), &Person{Name: "ghost"})
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestConcurrentSaveOfUnsavedEntityInsertsOnce(t *testing.T) {
	session := newTestSession(t)
	ctx := context.Background()

	person := &Person{Name: "A"}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = session.Save(ctx, person)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, countRows(t, session, &Person{}))
}

func TestLoadFailsOnMissingColumn(t *testing.T) {
	session := newTestSession(t)

	adapter, err := session.Registry().Adapter(&Person{})
	require.NoError(t, err)

	err = adapter.Load(&Person{}, map[string]any{"_id": int64(1)}, session.Cache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no column")
}
