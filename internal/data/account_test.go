package data

import (
	"testing"
)

func TestFindAccountByName(t *testing.T) {
	db := setUpDatabase(t)
	account := &Account{Name: "cardroom_test", Password: "hashed", Email: "test@test.com"}
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating account: %s", err)
	}

	found, err := FindAccountByName(db, "cardroom_test")
	if err != nil {
		t.Fatalf("error finding account: %s", err)
	}
	if found == nil || found.Name != account.Name {
		t.Errorf("FindAccountByName() = %v, want account %q", found, account.Name)
	}

	missing, err := FindAccountByName(db, "does_not_exist")
	if err != nil {
		t.Fatalf("error finding account: %s", err)
	}
	if missing != nil {
		t.Errorf("FindAccountByName() for an unknown name = %v, want nil", missing)
	}
}

func TestFindAccountsByID(t *testing.T) {
	db := setUpDatabase(t)
	names := []string{"player_one", "player_two", "player_three"}
	var ids []uint64
	for _, name := range names {
		account := &Account{Name: name, Password: "hashed", Email: name + "@test.com"}
		if err := CreateAccount(db, account); err != nil {
			t.Fatalf("error creating account %s: %s", name, err)
		}
		ids = append(ids, account.ID)
	}

	found, err := FindAccountsByID(db, ids[:2])
	if err != nil {
		t.Fatalf("error finding accounts: %s", err)
	}
	if len(found) != 2 {
		t.Fatalf("FindAccountsByID() returned %d accounts, want 2", len(found))
	}
	for _, id := range ids[:2] {
		if found[id] == nil {
			t.Errorf("account %d missing from batch result", id)
		}
	}
}

func TestUpdateAccount(t *testing.T) {
	db := setUpDatabase(t)
	account := &Account{Name: "cardroom_test", Password: "hashed", Email: "test@test.com"}
	if err := CreateAccount(db, account); err != nil {
		t.Fatalf("error creating account: %s", err)
	}

	account.Locale = "fr_FR"
	account.Outfit = "random"
	if err := UpdateAccount(db, account); err != nil {
		t.Fatalf("error updating account: %s", err)
	}

	found, err := FindAccountByID(db, account.ID)
	if err != nil {
		t.Fatalf("error finding account: %s", err)
	}
	if found.Locale != "fr_FR" || found.Outfit != "random" {
		t.Errorf("account after update = locale %q outfit %q, want fr_FR/random", found.Locale, found.Outfit)
	}
}
