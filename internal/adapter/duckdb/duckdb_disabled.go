//go:build !duckdb

package duckdb

const driverAvailable = false
