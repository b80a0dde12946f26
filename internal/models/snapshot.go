package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AccountTotals maps an account ID to that account's value in the base
// currency at snapshot time. Stored as a JSON text column.
type AccountTotals map[string]float64

func (t AccountTotals) Value() (driver.Value, error) {
	if t == nil {
		t = AccountTotals{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t *AccountTotals) Scan(value interface{}) error {
	if value == nil {
		*t = AccountTotals{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AccountTotals", value)
	}
	if len(data) == 0 {
		*t = AccountTotals{}
		return nil
	}
	return json.Unmarshal(data, t)
}

// Snapshot is one persisted daily record of aggregated totals in the base
// currency. At most one row exists per calendar date; re-recording the same
// date overwrites it.
type Snapshot struct {
	ID              uint          `json:"-" gorm:"primaryKey;autoIncrement"`
	Date            string        `json:"date" gorm:"uniqueIndex;not null;size:10"` // YYYY-MM-DD
	TotalAssetsBase float64       `json:"total_assets_base"`
	TotalPnlBase    float64       `json:"total_pnl_base"`
	AccountAssets   AccountTotals `json:"account_assets_base" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at"`
}

// SeriesPoint is one point of the history series used by charts. Points are
// ordered by date; the trailing point may be a live, non-persisted preview
// of today.
type SeriesPoint struct {
	Date   string  `json:"date"`
	Assets float64 `json:"assets"`
	Pnl    float64 `json:"pnl"`
}

// HistoryResponse is the API response for value history.
type HistoryResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
	Period    string     `json:"period"` // "week", "month", "3month", "year", "all"
}
