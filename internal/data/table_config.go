package data

import (
	"errors"

	"gorm.io/gorm"
)

// TableConfig is a stored table description the lobby can spawn a table from
// when a join addresses a game that is not instantiated yet.
type TableConfig struct {
	GameID           uint64 `gorm:"primaryKey"`
	Name             string `gorm:"unique; not null"`
	Variant          string `gorm:"not null"`
	BettingStructure string `gorm:"not null"`
	Seats            int
	PlayerTimeout    int
	MuckTimeout      int
	CurrencySerial   uint64
	Skin             string
}

func FindTableConfig(db *gorm.DB, gameID uint64) (*TableConfig, error) {
	var cfg TableConfig
	err := db.First(&cfg, gameID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &cfg, nil
}

// CreateTableConfig persists a table description.
func CreateTableConfig(db *gorm.DB, cfg *TableConfig) error {
	return db.Create(cfg).Error
}
