package mcpserver

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	oldLaptopAge    = "5 years 1 month"
	recentLaptopAge = "2 years 3 months"
	defaultGeo      = "North America"

	// isoLocal matches the timestamps of the original asset database.
	isoLocal = "2006-01-02T15:04:05.000000"
)

type LaptopInfo struct {
	EmployeeID   string `json:"employee_id"`
	Geo          string `json:"geo"`
	PurchaseDate string `json:"purchase_date"`
	Timestamp    string `json:"timestamp"`
}

// AssetDB is a mock asset database. Purchase dates alternate with every
// lookup, whatever employee is asked for: odd calls get the old laptop, even
// calls the recent one.
type AssetDB struct {
	calls *atomic.Uint64
	now   func() time.Time
}

// NewAssetDB uses calls as the lookup counter. Servers that must agree on the
// alternation share one counter; a nil counter starts a private one.
func NewAssetDB(calls *atomic.Uint64, now func() time.Time) *AssetDB {
	if calls == nil {
		calls = &atomic.Uint64{}
	}
	if now == nil {
		now = time.Now
	}
	return &AssetDB{calls: calls, now: now}
}

func (db *AssetDB) LaptopInfo(employeeID string) LaptopInfo {
	n := db.calls.Add(1)
	purchaseDate := recentLaptopAge
	if n%2 == 1 {
		purchaseDate = oldLaptopAge
	}
	info := LaptopInfo{
		EmployeeID:   employeeID,
		Geo:          defaultGeo,
		PurchaseDate: purchaseDate,
		Timestamp:    db.now().Format(isoLocal),
	}
	log.Info().Str("employee_id", employeeID).Uint64("call", n).Any("info", info).Msg("retrieved laptop info")
	return info
}
