package reference

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/pkg/models"
)

// orderRow mirrors one row of the columnar orders snapshot. Every column is
// optional; FileMaker exports leave blanks as nulls.
type orderRow struct {
	OrderID               *string `parquet:"Order_ID,optional"`
	FileMakerRecordNumber *string `parquet:"FileMaker_Record_Number,optional"`
	PatientLastName       *string `parquet:"Patient_Last_Name,optional"`
	PatientFirstName      *string `parquet:"Patient_First_Name,optional"`
	PatientName           *string `parquet:"PatientName,optional"`
}

// itemRow mirrors one row of the columnar line items snapshot.
type itemRow struct {
	OrderID *string `parquet:"Order_ID,optional"`
	DOS     *string `parquet:"DOS,optional"`
	CPT     *string `parquet:"CPT,optional"`
}

const readBatchSize = 8192

// ReadOrders reads an orders snapshot. Rows without an order id cannot be
// keyed and are skipped; the skip count comes back with the records.
func ReadOrders(path string) ([]models.OrderRecord, int, error) {
	var records []models.OrderRecord
	skipped := 0

	err := readRows(path, func(row orderRow) {
		orderID := strings.TrimSpace(deref(row.OrderID))
		if orderID == "" {
			skipped++
			return
		}
		records = append(records, models.OrderRecord{
			OrderID:               orderID,
			FileMakerRecordNumber: strings.TrimSpace(deref(row.FileMakerRecordNumber)),
			PatientLastName:       strings.TrimSpace(deref(row.PatientLastName)),
			PatientFirstName:      strings.TrimSpace(deref(row.PatientFirstName)),
			PatientName:           strings.TrimSpace(deref(row.PatientName)),
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return records, skipped, nil
}

// ReadLineItems reads a line items snapshot. Rows without an order id are
// skipped; null dates and codes are kept as nulls since the index build
// decides what to do with them.
func ReadLineItems(path string) ([]lineitems.LineItemRow, int, error) {
	var rows []lineitems.LineItemRow
	skipped := 0

	err := readRows(path, func(row itemRow) {
		orderID := strings.TrimSpace(deref(row.OrderID))
		if orderID == "" {
			skipped++
			return
		}
		rows = append(rows, lineitems.LineItemRow{
			OrderID:       orderID,
			DateOfService: nullTrimmed(row.DOS),
			CPTCode:       nullTrimmed(row.CPT),
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return rows, skipped, nil
}

func readRows[T any](path string, visit func(T)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[T](f)
	defer reader.Close()

	buf := make([]T, readBatchSize)
	for {
		n, readErr := reader.Read(buf)
		for i := 0; i < n; i++ {
			visit(buf[i])
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("read parquet: %w", readErr)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullTrimmed(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}
