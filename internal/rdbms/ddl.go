package rdbms

import "fmt"

// dialect holds the statements that differ between drivers.
type dialect struct {
	createTable string // %s = table name
}

var dialects = map[string]dialect{
	DriverPostgres: {
		createTable: `CREATE TABLE %s (
	optype      VARCHAR(64) NOT NULL,
	updateid    BIGSERIAL PRIMARY KEY,
	seqid       BIGINT NOT NULL,
	threadid    BIGINT NOT NULL,
	rid         BIGINT NOT NULL,
	starttime   BIGINT NOT NULL,
	endtime     BIGINT NOT NULL,
	numofupdate BIGINT NOT NULL,
	updatetype  VARCHAR(8) NOT NULL
)`,
	},
	DriverSQLite: {
		createTable: `CREATE TABLE %s (
	optype      TEXT NOT NULL,
	updateid    INTEGER PRIMARY KEY AUTOINCREMENT,
	seqid       INTEGER NOT NULL,
	threadid    INTEGER NOT NULL,
	rid         INTEGER NOT NULL,
	starttime   INTEGER NOT NULL,
	endtime     INTEGER NOT NULL,
	numofupdate INTEGER NOT NULL,
	updatetype  TEXT NOT NULL
)`,
	},
}

// indexedColumns are indexed after the bulk load, in this order.
var indexedColumns = []string{"starttime", "endtime", "rid", "optype"}

const insertRow = `INSERT INTO %s (optype, seqid, threadid, rid, starttime, endtime, numofupdate, updatetype)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// TableName returns tupdate<machineID>c<shard>.
func TableName(machineID, shard int) string {
	return fmt.Sprintf("tupdate%dc%d", machineID, shard)
}

func indexName(table, column string) string {
	return table + "_" + column
}
