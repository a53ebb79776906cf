// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

// Package journal persists fulfillment records in an embedded Badger store.
//
// The journal serves two needs: the HTTP API reads recent records from it,
// and the backfill scan consults it to skip request transactions that were
// already handled in a previous run.
package journal

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/fortuna-labs/fortuna/internal/outcome"
)

// Key spaces. bySig makes dedupe lookups O(1); byTime orders records for the
// recency scan. Both point at the same payload.
const (
	prefixBySig  = "sig:"
	prefixByTime = "ful:"
)

// Store is the embedded fulfillment journal.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the journal at dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway journal backed by memory only.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory journal: %w", err)
	}
	return &Store{db: db}, nil
}

// Put writes one record under both key spaces in a single transaction.
func (s *Store) Put(rec *outcome.Record) error {
	if rec.RequestSignature == "" {
		return fmt.Errorf("record without request signature")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}

	timeKey := fmt.Sprintf("%s%020d:%s", prefixByTime, rec.CompletedAt.UnixNano(), rec.RequestSignature)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(prefixBySig+rec.RequestSignature), payload); err != nil {
			return err
		}
		return txn.Set([]byte(timeKey), payload)
	})
	if err != nil {
		return fmt.Errorf("write journal record %s: %w", rec.RequestSignature, err)
	}
	return nil
}

// Has reports whether a record exists for the request transaction signature.
func (s *Store) Has(requestSignature string) (bool, error) {
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(prefixBySig + requestSignature))
		switch err {
		case nil:
			found = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return false, fmt.Errorf("lookup journal record %s: %w", requestSignature, err)
	}
	return found, nil
}

// Get returns the record for a request signature, or nil when absent.
func (s *Store) Get(requestSignature string) (*outcome.Record, error) {
	var rec *outcome.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixBySig + requestSignature))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rec = new(outcome.Record)
			return json.Unmarshal(val, rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read journal record %s: %w", requestSignature, err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]*outcome.Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	var records []*outcome.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixByTime)
		it := txn.NewIterator(opts)
		defer it.Close()

		// A reverse iteration must seek past the whole prefix range first.
		seek := append([]byte(prefixByTime), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(prefixByTime)) && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				rec := new(outcome.Record)
				if err := json.Unmarshal(val, rec); err != nil {
					return err
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent journal records: %w", err)
	}
	return records, nil
}

// Close flushes and closes the underlying store.
func (s *Store) Close() error {
	return s.db.Close()
}
