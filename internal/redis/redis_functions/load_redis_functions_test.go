package redis_functions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presenceLib(t *testing.T) string {
	t.Helper()
	code, err := fs.ReadFile("presence.lua")
	require.NoError(t, err)
	return string(code)
}

func TestEmbeddedLibraryRegistersFunctions(t *testing.T) {
	code := presenceLib(t)

	assert.True(t, strings.HasPrefix(code, "#!lua name=zensync"))
	assert.Contains(t, code, "redis.register_function('"+PresenceJoin+"'")
	assert.Contains(t, code, "redis.register_function('"+PresenceLeave+"'")
}

func TestLoadAll(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectFunctionLoadReplace(presenceLib(t)).SetVal("zensync")

	require.NoError(t, LoadAll(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAll_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	mock.ExpectFunctionLoadReplace(presenceLib(t)).SetErr(errors.New("ERR Library 'zensync' already exists"))

	err := LoadAll(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presence.lua")
}
