package dataset

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/privplane/anonymizer/pkg/errors"
	"github.com/privplane/anonymizer/pkg/models"
)

// Loader reads tabular datasets from CSV files or SQLite databases into the
// in-memory table model. Cells and headers are whitespace-trimmed on load so
// that hierarchy values match regardless of padding in the source file.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a dataset loader.
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{logger: logger}
}

// Load reads the dataset at path. The format is chosen by file extension:
// .csv for CSV, .db/.sqlite/.sqlite3 for SQLite. table names the SQLite
// table to read and is ignored for CSV.
func (l *Loader) Load(path, table string) (*models.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return l.loadCSV(path)
	case ".db", ".sqlite", ".sqlite3":
		return l.loadSQLite(path, table)
	default:
		return nil, errors.NewDatasetError(errors.CodeUnsupportedFormat, "unsupported dataset format").
			WithCause(errors.ErrUnsupportedFormat).
			WithContext("path", path).
			WithContext("extension", filepath.Ext(path))
	}
}

func (l *Loader) loadCSV(path string) (*models.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot open dataset").
			WithCause(err).
			WithContext("path", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot parse dataset").
			WithCause(err).
			WithContext("path", path)
	}
	if len(records) == 0 {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "dataset is empty").
			WithContext("path", path)
	}

	header := make([]string, len(records[0]))
	for i, c := range records[0] {
		header[i] = strings.TrimSpace(c)
	}

	tbl := models.NewTable(header)
	for _, record := range records[1:] {
		row := make([]string, len(record))
		for i, cell := range record {
			row[i] = strings.TrimSpace(cell)
		}
		if err := tbl.AppendRow(row); err != nil {
			return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "ragged dataset row").
				WithCause(err).
				WithContext("path", path)
		}
	}

	l.logger.WithFields(logrus.Fields{
		"path":    path,
		"columns": tbl.NumColumns(),
		"rows":    tbl.NumRows(),
	}).Debug("Dataset loaded")

	return tbl, nil
}

func (l *Loader) loadSQLite(path, table string) (*models.Table, error) {
	if table == "" {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "SQLite datasets require a table name").
			WithContext("path", path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot open dataset").
			WithCause(err).
			WithContext("path", path)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot open SQLite database").
			WithCause(err).
			WithContext("path", path)
	}

	rows, err := db.Raw(fmt.Sprintf("SELECT * FROM %q", table)).Rows()
	if err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot read SQLite table").
			WithCause(err).
			WithContext("path", path).
			WithContext("table", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot read SQLite columns").
			WithCause(err).
			WithContext("table", table)
	}

	tbl := models.NewTable(columns)
	cells := make([]sql.NullString, len(columns))
	scan := make([]interface{}, len(columns))
	for i := range cells {
		scan[i] = &cells[i]
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "cannot scan SQLite row").
				WithCause(err).
				WithContext("table", table)
		}
		row := make([]string, len(columns))
		for i, cell := range cells {
			if cell.Valid {
				row[i] = strings.TrimSpace(cell.String)
			}
		}
		if err := tbl.AppendRow(row); err != nil {
			return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "ragged dataset row").
				WithCause(err).
				WithContext("table", table)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatasetError(errors.CodeDatasetLoad, "error iterating SQLite rows").
			WithCause(err).
			WithContext("table", table)
	}

	l.logger.WithFields(logrus.Fields{
		"path":    path,
		"table":   table,
		"columns": tbl.NumColumns(),
		"rows":    tbl.NumRows(),
	}).Debug("Dataset loaded")

	return tbl, nil
}
