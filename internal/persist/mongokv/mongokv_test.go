package mongokv

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatdesk/internal/persist"
	"github.com/stretchr/testify/require"
)

// Runs against a live server: CHATDESK_TEST_MONGO_URI=mongodb://127.0.0.1:27017
func TestStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("CHATDESK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CHATDESK_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, uri, "chatdesk_test", uuid.NewString())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Get(ctx, persist.KeyContacts)
	require.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, s.Put(ctx, persist.KeyContacts, []byte(`[]`)))
	require.NoError(t, s.Put(ctx, persist.KeyContacts, []byte(`[{"id":"a"}]`)))
	got, err := s.Get(ctx, persist.KeyContacts)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":"a"}]`, string(got))
}
