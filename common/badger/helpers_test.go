package badger

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"

	"github.com/encointer/personhood-oracle/common/logging"
)

func TestGCWorker(t *testing.T) {
	require := require.New(t)

	logger := logging.GetLogger("common/badger/test")
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(NewLogAdapter(logger))
	db, err := badger.Open(opts)
	require.NoError(err, "Open")
	defer db.Close()

	require.NoError(collectValueLog(db), "in-memory databases have nothing to collect")

	gc := NewGCWorker(logger, db, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	gc.Close()
	require.NotPanics(gc.Close, "Close must be idempotent")
}
