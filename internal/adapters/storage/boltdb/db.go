// Package boltdb guarda avisos, eventos y saldos de custodia en un archivo BoltDB.
// Sirve para despliegues de un solo nodo sin Postgres.
package boltdb

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/ethereum/go-ethereum/common"
)

var (
	reportsBucket  = []byte("pet_reports")
	eventsBucket   = []byte("registry_events")
	eventIDsBucket = []byte("registry_event_ids")

	nativeBalancesBucket = []byte("ledger_native")
	tokenBalancesBucket  = []byte("ledger_token")
	allowancesBucket     = []byte("ledger_token_allowances")
)

// Open abre (o crea) el archivo y asegura los buckets.
func Open(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			reportsBucket, eventsBucket, eventIDsBucket,
			nativeBalancesBucket, tokenBalancesBucket, allowancesBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Claves big-endian: el orden de bytes coincide con el orden numérico.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func addressText(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func parseAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
