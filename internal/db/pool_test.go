package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://localhost:notaport/bank", DefaultPoolOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database url")
}

func TestDefaultPoolOptions(t *testing.T) {
	opts := DefaultPoolOptions()
	assert.Equal(t, int32(4), opts.MaxConns)
	assert.Positive(t, opts.ConnectTimeout)
}
