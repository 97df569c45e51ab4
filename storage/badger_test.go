package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/fulldump/objectstore/patch"
	"github.com/fulldump/objectstore/query"
)

func openTestBadger(t *testing.T, path string) *Badger {
	t.Helper()

	config := DefaultBadgerConfig(path)
	config.SyncWrites = false
	config.GCInterval = 0

	b, err := OpenBadger(config)
	require.NoError(t, err)
	return b
}

func rawEnvelope(t *testing.T, b *Badger, id string) []byte {
	t.Helper()

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordPrefix + id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	require.NoError(t, err)
	return value
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadger_InMemory(t *testing.T) {
	ctx := context.Background()

	b, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	defer b.Close()

	results, err := b.Add(ctx, []Record{{"id": "1", "name": "a"}}, Options{})
	require.NoError(t, err)
	assert.Len(t, results.SuccessfulData, 1)

	records, err := b.Get(ctx, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, "a", records[0]["name"])
}

func TestBadger_Envelope(t *testing.T) {
	ctx := context.Background()
	b := openTestBadger(t, t.TempDir())
	defer b.Close()

	_, err := b.Put(ctx, []Record{{"id": "a", "n": 1}, {"id": "b", "n": 2}}, Options{})
	require.NoError(t, err)

	envelope := rawEnvelope(t, b, "b")
	assert.Equal(t, uint64(2), gjson.GetBytes(envelope, "seq").Uint())
	assert.Equal(t, `{"id":"b","n":2}`, gjson.GetBytes(envelope, "record").Raw)

	_, err = b.Put(ctx, []Record{{"id": "b", "n": 3}}, Options{})
	require.NoError(t, err)

	envelope = rawEnvelope(t, b, "b")
	assert.Equal(t, uint64(2), gjson.GetBytes(envelope, "seq").Uint())
	assert.Equal(t, int64(3), gjson.GetBytes(envelope, "record.n").Int())
}

func TestBadger_Reopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir()

	b := openTestBadger(t, path)
	_, err := b.Put(ctx, []Record{{"id": "z"}, {"id": "y"}, {"id": "x"}}, Options{})
	require.NoError(t, err)
	_, err = b.Patch(ctx, []PatchEntry{{ID: "z", Patch: patch.Patch{patch.Add(patch.Path("tag"), "first")}}})
	require.NoError(t, err)
	_, err = b.Delete(ctx, []string{"y"})
	require.NoError(t, err)
	_, err = b.Put(ctx, []Record{{"id": "y"}}, Options{})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened := openTestBadger(t, path)
	defer reopened.Close()

	data, err := reopened.Fetch(ctx, nil).Data.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "x", "y"}, reopened.Identify(data))
	assert.Equal(t, "first", data[0]["tag"])

	_, err = reopened.Add(ctx, []Record{{"id": "w"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), gjson.GetBytes(rawEnvelope(t, reopened, "w"), "seq").Uint())
}

func TestBadger_Fetch(t *testing.T) {
	ctx := context.Background()
	b := openTestBadger(t, t.TempDir())
	defer b.Close()

	_, err := b.Put(ctx, []Record{
		{"id": "1", "age": 30},
		{"id": "2", "age": 20},
		{"id": "3", "age": 40},
	}, Options{})
	require.NoError(t, err)

	result := b.Fetch(ctx, query.Compose(query.Filter(query.Ge("age", 25)), query.SortBy("-age"), query.Range(0, 1)))

	total, err := result.TotalLength.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	data, err := result.Data.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, b.Identify(data))
}

func TestBadger_Closed(t *testing.T) {
	ctx := context.Background()
	b := openTestBadger(t, t.TempDir())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, err := b.Delete(ctx, []string{"1"})
	assert.True(t, errors.Is(err, ErrorClosed))
}
