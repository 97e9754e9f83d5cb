package utils

import (
	"bytes"
	"testing"

	logx "github.com/blueledger/tally-go/internal/tally/log"
	"github.com/blueledger/tally-go/internal/tally/pool"
)

func newLocalOpsCounter(t *testing.T) *OpsCounter {
	t.Helper()
	return NewOpsCounter(logx.NewTo(&bytes.Buffer{}, "ERROR", "text"), pool.NewInmem())
}
