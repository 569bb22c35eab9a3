package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestFilterLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := NewFilterLogger(NewJSONLogger(&buf), "account", "subject")
	logger.Info("issued credential",
		"account", "deadbeef",
		"subject", "npub1xyz",
		"verified_count", 2,
	)

	const expectedOutput = `{"level":"info","msg":"issued credential","verified_count":2}` + "\n"
	require.Equal(expectedOutput, buf.String())

	buf.Reset()
	logger.With("method", "fetch").Debug("with context", "account", "deadbeef")
	require.Equal(`{"level":"debug","method":"fetch","msg":"with context"}`+"\n", buf.String())
}

func TestLevelFlag(t *testing.T) {
	require := require.New(t)

	var lvl Level
	require.NoError(lvl.Set("warn"))
	require.Equal(LevelWarn, lvl)
	require.Equal("warn", lvl.String())
	require.Error(lvl.Set("verbose"))

	var f Format
	require.NoError(f.Set("json"))
	require.Equal(FmtJSON, f)
	require.Error(f.Set("xml"))
}

func TestModuleLevels(t *testing.T) {
	require := require.New(t)

	r := &registry{
		defaultLevel: LevelWarn,
		moduleLevels: map[string]Level{
			"oracle":         LevelInfo,
			"oracle/gateway": LevelDebug,
			"rhp":            LevelError,
		},
	}
	require.Equal(LevelDebug, r.levelFor("oracle/gateway"), "longest prefix wins")
	require.Equal(LevelInfo, r.levelFor("oracle/relay"))
	require.Equal(LevelError, r.levelFor("rhp/internal"))
	require.Equal(LevelWarn, r.levelFor("storage/badger"), "default level")
}

func TestEarlyLoggers(t *testing.T) {
	require := require.New(t)

	r := &registry{base: log.NewNopLogger(), defaultLevel: LevelError}
	early := r.getLogger("oracle/relay")
	require.Equal(LevelError, early.level)

	var buf bytes.Buffer
	err := r.initialize(&buf, FmtJSON, LevelWarn, map[string]Level{"oracle": LevelDebug})
	require.NoError(err, "initialize")
	require.Equal(LevelDebug, early.level, "early loggers pick up configured levels")

	early.Debug("hello", "n", 1)
	require.Contains(buf.String(), `"msg":"hello"`)
	require.Contains(buf.String(), `"module":"oracle/relay"`)

	require.Error(r.initialize(&buf, FmtJSON, LevelWarn, nil), "double initialization")
}
