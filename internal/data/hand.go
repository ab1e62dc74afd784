package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Hand is one finished hand as archived by the table that played it. The
// replayable packet stream and the per-player chip and pocket maps are stored
// as JSON blobs; queries that need per-player access go through HandPlayer.
type Hand struct {
	Serial           uint64 `gorm:"primaryKey"`
	Variant          string
	BettingStructure string
	Description      string
	PlayedAt         time.Time
	Chips            []byte
	Pockets          []byte
	Packets          []byte
}

// HandPlayer records one player's participation in a hand.
type HandPlayer struct {
	ID           uint64 `gorm:"primaryKey"`
	HandSerial   uint64 `gorm:"index; not null"`
	PlayerSerial uint64 `gorm:"index; not null"`
}

// SaveHand persists a hand and its participation records in one transaction.
func SaveHand(db *gorm.DB, hand *Hand, players []uint64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(hand).Error; err != nil {
			return err
		}
		for _, serial := range players {
			entry := &HandPlayer{HandSerial: hand.Serial, PlayerSerial: serial}
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func FindHandBySerial(db *gorm.DB, serial uint64) (*Hand, error) {
	var hand Hand
	err := db.First(&hand, serial).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &hand, nil
}

// FindHandPlayers returns the serials of every player seated in a hand.
func FindHandPlayers(db *gorm.DB, handSerial uint64) ([]uint64, error) {
	var entries []HandPlayer
	if err := db.Where("hand_serial = ?", handSerial).Find(&entries).Error; err != nil {
		return nil, err
	}

	serials := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		serials = append(serials, entry.PlayerSerial)
	}
	return serials, nil
}

// ListHands returns one page of hand serials, newest first, plus the total
// match count. A zero playerSerial lists every hand; otherwise only hands the
// player took part in. An optional description filter narrows the listing.
func ListHands(db *gorm.DB, playerSerial uint64, description string, start, count int) (int, []uint64, error) {
	query := db.Model(&Hand{})
	if playerSerial != 0 {
		query = query.
			Joins("JOIN hand_players ON hand_players.hand_serial = hands.serial").
			Where("hand_players.player_serial = ?", playerSerial)
	}
	if description != "" {
		query = query.Where("hands.description LIKE ?", "%"+description+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var serials []uint64
	err := query.
		Order("hands.serial DESC").
		Offset(start).
		Limit(count).
		Pluck("hands.serial", &serials).Error
	if err != nil {
		return 0, nil, err
	}

	return int(total), serials, nil
}
