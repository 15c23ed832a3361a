package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/config"
)

func TestLoadOrCreateNodeKeysPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := config.LoadOrCreateNodeKeys(dir)
	require.NoError(t, err)

	second, err := config.LoadOrCreateNodeKeys(dir)
	require.NoError(t, err)

	assert.Equal(t, first.NodeID(), second.NodeID())
}

func TestNodePaths(t *testing.T) {
	n := config.Node{DataDir: "/var/lib/ebill"}
	assert.Equal(t, filepath.Join("/var/lib/ebill", "ebill.db"), n.SqlitePath())
	assert.Equal(t, filepath.Join("/var/lib/ebill", "identity.leveldb"), n.LeveldbPath())
}
