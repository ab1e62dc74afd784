package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Account contains the login information and public profile of each
// registered player.
type Account struct {
	ID               uint64 `gorm:"primaryKey"`
	Name             string `gorm:"unique; not null"`
	Password         string `gorm:"not null"`
	Email            string `gorm:"unique"`
	RegistrationDate time.Time
	URL              string
	Outfit           string
	Locale           string
	Banned           bool `gorm:"default:false"`
	Active           bool `gorm:"default:true"`
	PrivilegeLevel   byte
}

func FindAccountByID(db *gorm.DB, id uint64) (*Account, error) {
	var account Account
	err := db.First(&account, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// FindAccountByName searches for an account with the specified name,
// returning the *Account instance if found or nil if there is no match.
func FindAccountByName(db *gorm.DB, name string) (*Account, error) {
	var account Account
	err := db.Where("name = ?", name).First(&account).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &account, nil
}

// FindAccountsByID loads a batch of accounts keyed by their ids.
func FindAccountsByID(db *gorm.DB, ids []uint64) (map[uint64]*Account, error) {
	var accounts []*Account
	if err := db.Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}

	byID := make(map[uint64]*Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	return byID, nil
}

// CreateAccount persists the Account record to the database.
func CreateAccount(db *gorm.DB, account *Account) error {
	return db.Create(account).Error
}

// UpdateAccount persists changes to an existing Account record.
func UpdateAccount(db *gorm.DB, account *Account) error {
	return db.Save(account).Error
}

// DeleteAccount soft-deletes an Account record from the database.
func DeleteAccount(db *gorm.DB, account *Account) error {
	return db.Delete(account).Error
}
