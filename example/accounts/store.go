// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var errAccountNotFound = errors.New("account not found")

type Account struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

type Store struct {
	mu       sync.RWMutex
	nextID   int
	accounts map[string]Account
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]Account),
	}
}

func (s *Store) Create(name string, now time.Time) Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	a := Account{
		ID:      strconv.Itoa(s.nextID),
		Name:    name,
		Created: now,
	}
	s.accounts[a.ID] = a
	return a
}

func (s *Store) Get(id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return Account{}, errAccountNotFound
	}
	return a, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return errAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) List() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	slices.SortFunc(accounts, func(a, b Account) int {
		if n := len(a.ID) - len(b.ID); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})
	return accounts
}
