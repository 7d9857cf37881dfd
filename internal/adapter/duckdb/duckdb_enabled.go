//go:build duckdb

package duckdb

import _ "github.com/marcboeker/go-duckdb"

const driverAvailable = true
