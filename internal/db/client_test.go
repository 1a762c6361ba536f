package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ws://localhost:8000/rpc", "ws://localhost:8000"},
		{"wss://db.example.com/rpc/", "wss://db.example.com"},
		{"ws://localhost:8000", "ws://localhost:8000"},
	}
	for _, tt := range tests {
		got, err := rpcBaseURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"http://localhost:8000/rpc", "ws:///rpc", "localhost:8000"} {
		_, err := rpcBaseURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{URL: "ws://localhost:8000/rpc", Namespace: "factsheet", Database: "tasks"}
	require.NoError(t, cfg.Validate())

	cfg.AuthLevel = AuthDatabase
	require.NoError(t, cfg.Validate())

	bad := Config{URL: "http://x", AuthLevel: "namespace"}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace and database are required")
	assert.Contains(t, err.Error(), "scheme must be ws or wss")
	assert.Contains(t, err.Error(), `unknown auth level "namespace"`)
}

func TestConfigSignIn(t *testing.T) {
	cfg := Config{Namespace: "ns", Database: "db", Username: "u", Password: "p"}

	root := cfg.signIn()
	assert.Empty(t, root.Namespace)
	assert.Empty(t, root.Database)
	assert.Equal(t, "u", root.Username)
	assert.Equal(t, AuthRoot, authLevel(cfg))

	cfg.AuthLevel = AuthDatabase
	scoped := cfg.signIn()
	assert.Equal(t, "ns", scoped.Namespace)
	assert.Equal(t, "db", scoped.Database)
	assert.Equal(t, "p", scoped.Password)
}
