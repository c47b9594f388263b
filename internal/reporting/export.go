package reporting

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"nidwatch/internal/models"
)

// ParquetRecord is the on-disk row of a Parquet export. A missing capture
// timestamp is stored as null.
type ParquetRecord struct {
	TS     *float64 `parquet:"ts,optional"`
	Src    string   `parquet:"src"`
	Dst    string   `parquet:"dst"`
	Length int64    `parquet:"length"`
}

// ExportCSV writes every column of t to filename with a header row.
// Nulls are written as empty fields.
func ExportCSV(filename string, t *models.Table) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	bufWriter := bufio.NewWriterSize(file, 1024*1024)
	writer := csv.NewWriter(bufWriter)

	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	row := make([]string, len(t.Columns))
	for _, cells := range t.Rows {
		for i, v := range cells {
			row[i] = models.String(v)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	if err := bufWriter.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// ExportParquet writes the canonical ts/src/dst/length view of t to
// filename with Zstd compression.
func ExportParquet(filename string, t *models.Table) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	schema := parquet.SchemaOf(ParquetRecord{})
	writer := parquet.NewWriter(file, schema, parquet.Compression(&parquet.Zstd))

	for _, rec := range t.Records() {
		row := ParquetRecord{Src: rec.Src, Dst: rec.Dst, Length: rec.Length}
		if rec.HasTimestamp() {
			ts := rec.TS
			row.TS = &ts
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing row: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return err
	}
	return file.Close()
}
