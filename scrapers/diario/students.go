package diario

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"schoolsync-backend/lib/htmlutil"
)

// StudentRecord is one row of the platform's student list export.
type StudentRecord struct {
	ExternalID string
	Name       string
}

// ParseStudentCsv decodes the csv student list export. The first row
// is a header, columns are located by name (matricula/nome) so column
// reordering between platform releases doesn't break parsing.
func ParseStudentCsv(data []byte) ([]StudentRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode student csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("student csv is empty")
	}

	idCol := -1
	nameCol := -1
	for i, header := range rows[0] {
		switch strings.ToLower(htmlutil.CleanText(header)) {
		case "matricula", "matrícula":
			idCol = i
		case "nome", "nome do aluno":
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("student csv is missing matricula or nome columns: %v", rows[0])
	}

	var out []StudentRecord
	for _, row := range rows[1:] {
		if len(row) <= idCol || len(row) <= nameCol {
			continue
		}
		id := htmlutil.CleanText(row[idCol])
		name := htmlutil.CleanText(row[nameCol])
		if id == "" || name == "" {
			continue
		}
		out = append(out, StudentRecord{ExternalID: id, Name: name})
	}
	return out, nil
}
