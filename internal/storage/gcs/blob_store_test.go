package gcs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "client")
}

func TestOpenRequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{}, nil)
	require.ErrorContains(t, err, "bucket")
}

func TestObjectURI(t *testing.T) {
	t.Parallel()

	require.Equal(t, "gs://crawls/example.com/run.json", ObjectURI("crawls", "example.com/run.json"))
}

func TestCloseUnownedIsNoop(t *testing.T) {
	t.Parallel()

	var s *BlobStore
	require.NoError(t, s.Close())
	require.NoError(t, (&BlobStore{}).Close())
}
