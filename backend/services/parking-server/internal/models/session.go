package models

// Session is the in-memory view of one device's parking interval.
type Session struct {
	DeviceID         string  `db:"device_id" json:"device_id"`
	Zone             string  `db:"zone" json:"zone"`
	FeeRatePerSecond float64 `json:"fee_rate_per_second"`
	StartEpoch       int64   `json:"start_epoch"`
	ElapsedSeconds   int64   `db:"elapsed_seconds" json:"elapsed_seconds"`
	Connected        bool    `json:"connected"`
}

// StoredSession is a row of the parking_sessions table.
type StoredSession struct {
	DeviceID       string `db:"device_id"`
	ElapsedSeconds int64  `db:"elapsed_seconds"`
	Zone           string `db:"zone"`
}

// ZonePrice is a row of the zone_prices table.
type ZonePrice struct {
	Zone             string  `db:"zone" json:"zone"`
	FeeRatePerSecond float64 `db:"fee_rate_per_second" json:"fee_rate_per_second"`
}
