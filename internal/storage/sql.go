package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      device_id,
                      sample_rate,
                      log_path,
                      config)
VALUES (?, ?, ?, ?, ?)`

	finishSessionSQL = `
UPDATE sessions
SET end_time = ?,
    state    = ?,
    samples  = ?,
    error    = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT id,
       start_time,
       end_time,
       device_id,
       sample_rate,
       log_path,
       config,
       state,
       samples,
       error
FROM sessions
WHERE id = ?`

	selectSessionsSQL = `
SELECT id,
       start_time,
       end_time,
       device_id,
       sample_rate,
       log_path,
       config,
       state,
       samples,
       error
FROM sessions
ORDER BY start_time, id`

	insertAnalysisSQL = `
INSERT INTO analyses (session_id,
                      timestamp,
                      min,
                      max,
                      mean,
                      rms,
                      peak_frequency,
                      peak_magnitude)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectAnalysesSQL = `
SELECT timestamp,
       min,
       max,
       mean,
       rms,
       peak_frequency,
       peak_magnitude
FROM analyses
WHERE session_id = ?`
)

//go:embed schema.sql
var initSchemaSQL string
