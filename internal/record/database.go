package record

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "records"

// DB defines the interface for record persistence. There is deliberately no
// update or delete: records are append-only.
type DB interface {
	// CreateRecord assigns the record a new ID and saves it
	CreateRecord(record *Record) error

	// ListRecordsForEmployee returns the records of one employee, newest first
	ListRecordsForEmployee(employeeID string) ([]*Record, error)

	// ListRecords returns all records, newest first
	ListRecords() ([]*Record, error)

	// ListTallies returns all records, newest first, with ImagePayload left empty
	ListTallies() ([]*Record, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// itob encodes an ID as a big-endian key so cursor order matches ID order
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// CreateRecord saves a record under the next bucket sequence
func (b *BoltDB) CreateRecord(record *Record) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		id, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating record id: %w", err)
		}

		stored := *record
		stored.ID = id
		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		if err := bucket.Put(itob(id), data); err != nil {
			return err
		}

		record.ID = id
		return nil
	})
}

// ListRecordsForEmployee returns the records owned by employeeID
func (b *BoltDB) ListRecordsForEmployee(employeeID string) ([]*Record, error) {
	return b.list(func(r *Record) bool {
		return r.EmployeeID == employeeID
	})
}

// ListRecords returns all records
func (b *BoltDB) ListRecords() ([]*Record, error) {
	return b.list(func(*Record) bool { return true })
}

// ListTallies returns all records without decoding their images
func (b *BoltDB) ListTallies() ([]*Record, error) {
	return b.scan(decodeTally, func(*Record) bool { return true })
}

func (b *BoltDB) list(keep func(*Record) bool) ([]*Record, error) {
	return b.scan(decodeRecord, keep)
}

func decodeRecord(data []byte) (*Record, error) {
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// skipValue consumes a JSON value without keeping it
type skipValue struct{}

func (*skipValue) UnmarshalJSON([]byte) error { return nil }

// storedTally shadows the image field so it is never copied out of the mmap
type storedTally struct {
	*Record
	ImagePayload skipValue `json:"image"`
}

func decodeTally(data []byte) (*Record, error) {
	tally := storedTally{Record: &Record{}}
	if err := json.Unmarshal(data, &tally); err != nil {
		return nil, err
	}
	return tally.Record, nil
}

func (b *BoltDB) scan(decode func([]byte) (*Record, error), keep func(*Record) bool) ([]*Record, error) {
	records := make([]*Record, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			record, err := decode(v)
			if err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			if keep(record) {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(records)
	return records, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// sortNewestFirst orders records by capture time descending, then ID descending
func sortNewestFirst(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CapturedAt.Equal(records[j].CapturedAt) {
			return records[i].CapturedAt.After(records[j].CapturedAt)
		}
		return records[i].ID > records[j].ID
	})
}
