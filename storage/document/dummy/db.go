package dummydocs

import (
	"sync"

	"github.com/somaplus/darasa/core/account"
)

type (
	DB struct {
		profile *profileTable
		admin   *adminTable
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*account.Profile
	}

	adminTable struct {
		sync.RWMutex
		table map[string]struct{}
	}
)

func Open() (*DB, error) {
	db := &DB{
		profile: &profileTable{table: make(map[string]*account.Profile)},
		admin:   &adminTable{table: make(map[string]struct{})},
	}
	return db, nil
}
