package shockdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/storacha/shockaudit/pkg/node"
)

func TestConfigURI(t *testing.T) {
	require.Equal(t, "mongodb://127.0.0.1:27017", Config{Host: "127.0.0.1:27017"}.URI())
	require.Equal(t, "mongodb://db.example:27017/?replicaSet=rs0", Config{Host: "mongodb://db.example:27017/?replicaSet=rs0"}.URI())
}

func TestNodeFilter(t *testing.T) {
	require.Empty(t, NodeFilter(time.Time{}))

	since := time.Date(2016, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, bson.D{{Key: "last_modified", Value: bson.D{{Key: "$gte", Value: since}}}}, NodeFilter(since))
}

func TestDecodeRecord(t *testing.T) {
	const id = "0a1b2c3d-4e5f-4a6b-8c7d-8e9f0a1b2c3d"

	t.Run("canonical record with extra fields", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{
			"_id":           "5710f2a3c1e2",
			"id":            id,
			"version":       "9c0d",
			"file":          bson.M{"name": "reads.fastq", "size": int32(17), "checksum": bson.M{"md5": "abc"}},
			"acl":           bson.M{"owner": "public"},
			"type":          "basic",
			"created_on":    time.Date(2014, 3, 3, 0, 0, 0, 0, time.UTC),
			"last_modified": time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			"relatives":     bson.A{},
		})
		require.NoError(t, err)

		rec, err := decodeRecord(raw)
		require.NoError(t, err)
		require.Equal(t, id, rec.ID)
		require.Equal(t, int64(17), rec.File.Size)
		require.Equal(t, node.TypeBasic, rec.Type)
		require.Equal(t, "public", rec.ACL.Owner)
	})

	t.Run("record without id", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"file": bson.M{"name": "x"}})
		require.NoError(t, err)

		_, err = decodeRecord(raw)
		var recErr *RecordError
		require.ErrorAs(t, err, &recErr)
	})

	t.Run("record with wrongly typed field", func(t *testing.T) {
		raw, err := bson.Marshal(bson.M{"id": id, "file": "not a document"})
		require.NoError(t, err)

		_, err = decodeRecord(raw)
		var recErr *RecordError
		require.ErrorAs(t, err, &recErr)
		require.Equal(t, id, recErr.ID)
	})
}

func TestConnectUnreachable(t *testing.T) {
	_, err := Connect(t.Context(), Config{
		Host:     "127.0.0.1:1",
		Database: "ShockDB",
		Timeout:  200 * time.Millisecond,
	})
	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
	require.Equal(t, "127.0.0.1:1", connErr.Host)
}
