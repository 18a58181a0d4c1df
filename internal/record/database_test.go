package record

import (
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// storeBehaviour runs the DB contract against one backend
func storeBehaviour(open func(dir string) (DB, error)) {
	var db DB

	base := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		var err error
		db, err = open(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("CreateRecord", func() {
		var (
			record *Record
			err    error
		)

		BeforeEach(func() {
			record = &Record{
				EmployeeID:   "7",
				EmployeeName: "Ana",
				ProviderName: "Panaderia Sol",
				BreadCount:   3,
				CashAmount:   decimal.RequireFromString("1500.50"),
				ImagePayload: "data:image/jpeg;base64,aGVsbG8=",
				CapturedAt:   base,
			}
		})

		JustBeforeEach(func() {
			err = db.CreateRecord(record)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should assign an ID", func() {
			Expect(record.ID).NotTo(BeZero())
		})

		It("should round-trip every field", func() {
			records, listErr := db.ListRecords()
			Expect(listErr).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))

			saved := records[0]
			Expect(saved.ID).To(Equal(record.ID))
			Expect(saved.EmployeeID).To(Equal("7"))
			Expect(saved.EmployeeName).To(Equal("Ana"))
			Expect(saved.ProviderName).To(Equal("Panaderia Sol"))
			Expect(saved.BreadCount).To(Equal(3))
			Expect(saved.CashAmount.Equal(decimal.RequireFromString("1500.50"))).To(BeTrue())
			Expect(saved.ImagePayload).To(Equal("data:image/jpeg;base64,aGVsbG8="))
			Expect(saved.CapturedAt).To(BeTemporally("==", base))
		})

		It("should keep every digit of the cash amount", func() {
			wide := &Record{
				EmployeeID:   "7",
				EmployeeName: "Ana",
				CashAmount:   decimal.RequireFromString("1234567890123456.78"),
				ImagePayload: "x",
				CapturedAt:   base,
			}
			Expect(db.CreateRecord(wide)).To(Succeed())

			records, listErr := db.ListRecords()
			Expect(listErr).NotTo(HaveOccurred())
			Expect(records[0].ID).To(Equal(wide.ID))
			Expect(records[0].CashAmount.String()).To(Equal("1234567890123456.78"))
		})

		It("should list tallies without the image", func() {
			tallies, listErr := db.ListTallies()
			Expect(listErr).NotTo(HaveOccurred())
			Expect(tallies).To(HaveLen(1))

			tally := tallies[0]
			Expect(tally.ID).To(Equal(record.ID))
			Expect(tally.EmployeeName).To(Equal("Ana"))
			Expect(tally.BreadCount).To(Equal(3))
			Expect(tally.CashAmount.Equal(decimal.RequireFromString("1500.50"))).To(BeTrue())
			Expect(tally.CapturedAt).To(BeTemporally("==", base))
			Expect(tally.ImagePayload).To(BeEmpty())
		})

		It("should assign increasing IDs", func() {
			next := &Record{EmployeeID: "7", EmployeeName: "Ana", ImagePayload: "x", CapturedAt: base}
			Expect(db.CreateRecord(next)).To(Succeed())
			Expect(next.ID).To(BeNumerically(">", record.ID))
		})
	})

	Describe("concurrent inserts", func() {
		It("should assign a unique ID to every record", func() {
			const writers = 20
			var wg sync.WaitGroup
			ids := make(chan uint64, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					r := &Record{EmployeeID: "7", EmployeeName: "Ana", ImagePayload: "x", CapturedAt: base}
					Expect(db.CreateRecord(r)).To(Succeed())
					ids <- r.ID
				}()
			}
			wg.Wait()
			close(ids)

			seen := make(map[uint64]bool)
			for id := range ids {
				Expect(seen).NotTo(HaveKey(id))
				seen[id] = true
			}
			Expect(seen).To(HaveLen(writers))
		})
	})

	Describe("listing", func() {
		BeforeEach(func() {
			for i, owner := range []string{"7", "8", "7", "7"} {
				at := base.Add(time.Duration(i) * time.Hour)
				if i == 3 {
					// Same timestamp as the previous record to exercise the ID tiebreak
					at = base.Add(2 * time.Hour)
				}
				Expect(db.CreateRecord(&Record{
					EmployeeID:   owner,
					EmployeeName: "name-" + owner,
					ImagePayload: "x",
					CapturedAt:   at,
				})).To(Succeed())
			}
		})

		It("should list everything newest first", func() {
			records, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(4))
			Expect(records[0].ID).To(BeNumerically(">", records[1].ID))
			Expect(records[0].CapturedAt).To(BeTemporally("==", records[1].CapturedAt))
			for i := 1; i < len(records); i++ {
				Expect(records[i-1].CapturedAt).To(BeTemporally(">=", records[i].CapturedAt))
			}
		})

		It("should list only the employee's records", func() {
			records, err := db.ListRecordsForEmployee("7")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			for _, r := range records {
				Expect(r.EmployeeID).To(Equal("7"))
			}
			Expect(records[len(records)-1].CapturedAt).To(BeTemporally("==", base))
		})

		It("should return an empty list for unknown employees", func() {
			records, err := db.ListRecordsForEmployee("unknown")
			Expect(err).NotTo(HaveOccurred())
			Expect(records).NotTo(BeNil())
			Expect(records).To(BeEmpty())
		})
	})

	When("the store is empty", func() {
		It("should return an empty list", func() {
			records, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).NotTo(BeNil())
			Expect(records).To(BeEmpty())
		})
	})
}

var _ = Describe("BoltDB", func() {
	storeBehaviour(func(dir string) (DB, error) {
		return NewBoltDB(filepath.Join(dir, "test.db"))
	})

	When("the database file is reopened", func() {
		It("should keep records and continue the ID sequence", func() {
			path := filepath.Join(GinkgoT().TempDir(), "reopen.db")
			db, err := NewBoltDB(path)
			Expect(err).NotTo(HaveOccurred())
			first := &Record{EmployeeID: "7", ImagePayload: "x", CapturedAt: time.Now()}
			Expect(db.CreateRecord(first)).To(Succeed())
			Expect(db.Close()).To(Succeed())

			db, err = NewBoltDB(path)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()
			second := &Record{EmployeeID: "7", ImagePayload: "x", CapturedAt: time.Now()}
			Expect(db.CreateRecord(second)).To(Succeed())
			Expect(second.ID).To(Equal(first.ID + 1))

			records, err := db.ListRecords()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})
	})
})

var _ = Describe("GormDB", func() {
	storeBehaviour(func(dir string) (DB, error) {
		return NewSQLiteDB(filepath.Join(dir, "test.sqlite"))
	})
})
