package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/liamcoop/startrescue/exam"
)

// Separator is the CSV field delimiter.
const Separator = ';'

// WriteCSV writes an identity block, a blank line and one row per record.
func WriteCSV(w io.Writer, ex exam.Examinee, records []exam.AnswerRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = Separator

	rows := [][]string{
		{"Name", ex.Name},
		{"Sector", ex.Sector},
		{"Registration", ex.Registration},
		{"Email", orBlank(ex.Email)},
		{},
		headerRow(),
	}
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
