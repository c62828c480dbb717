package sqlite

import (
	"fmt"
	"strings"
)

// schema builds the database schema DDL. The temperature log has one column
// per configured source slot, so its DDL depends on the source count.
func schema(sourceCount int) string {
	columns := []string{
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"timestamp DATETIME NOT NULL",
	}
	for i := 1; i <= sourceCount; i++ {
		columns = append(columns, fmt.Sprintf("source%d REAL", i))
	}

	return fmt.Sprintf(`
-- Heater state transitions
CREATE TABLE IF NOT EXISTS heat_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    state BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_heat_log_time ON heat_log(timestamp);

-- One row per poll cycle, one column per source slot
CREATE TABLE IF NOT EXISTS temperature_log (
    %s
);
CREATE INDEX IF NOT EXISTS idx_temperature_log_time ON temperature_log(timestamp);

-- Setpoint audit log, every write recorded
CREATE TABLE IF NOT EXISTS setpoint_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp DATETIME NOT NULL,
    off_peak REAL NOT NULL,
    full_cost REAL NOT NULL
);
`, strings.Join(columns, ",\n    "))
}
