package dataset

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// WriteCSV writes the table as CSV, header first, rows in table order.
// Reloading the output reproduces the table bit-for-bit.
func WriteCSV(w io.Writer, tbl *models.Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tbl.Columns); err != nil {
		return errors.NewDatasetError(errors.CodeDatasetExport, "cannot write CSV header").WithCause(err)
	}
	for _, row := range tbl.Rows {
		if err := writer.Write(row); err != nil {
			return errors.NewDatasetError(errors.CodeDatasetExport, "cannot write CSV row").WithCause(err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return errors.NewDatasetError(errors.CodeDatasetExport, "cannot flush CSV output").WithCause(err)
	}
	return nil
}

// WriteCSVFile writes the table to the named file, creating it if needed.
func WriteCSVFile(path string, tbl *models.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.NewDatasetError(errors.CodeDatasetExport, "cannot create output file").
			WithCause(err).
			WithContext("path", path)
	}
	defer file.Close()
	return WriteCSV(file, tbl)
}
