package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "quantlens",
		User:        "default",
		Password:    "p@ss",
		DialTimeout: 5 * time.Second,
		MaxExecTime: time.Minute,
	})
	assert.True(t, strings.HasPrefix(dsn, "clickhouse://default:p%40ss@ch:9000/quantlens?"), dsn)
	assert.Contains(t, dsn, "dial_timeout=5s")
	assert.Contains(t, dsn, "max_execution_time=60")
	assert.NotContains(t, dsn, "read_timeout")

	assert.True(t, strings.HasPrefix(buildDSN(ClientConfig{Host: "ch", Port: 8123, UseHTTP: true}), "http://"))
}

func TestSchema(t *testing.T) {
	stmts := Schema("quantlens", "performance_ledger")
	assert.Len(t, stmts, 5)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS quantlens", stmts[0])
	assert.Contains(t, stmts[3], "quantlens.candles_1d")
	assert.Contains(t, stmts[4], "quantlens.performance_ledger")
}

func TestNewClient_RequiresHost(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}
