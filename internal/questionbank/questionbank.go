// Package questionbank moves quiz questions in and out of spreadsheets.
//
// A sheet has one question per row: the question text, the text of the correct
// answer, then every answer option in its own column. The first row may be a header.
package questionbank

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-studio/internal/authoring/tree"
	"github.com/p-n-ai/pai-studio/internal/authoring/validate"
	"github.com/p-n-ai/pai-studio/internal/gateway"
)

// SheetName is the sheet Write produces.
const SheetName = "Questions"

const minAnswers = 2

// RowError points at the row of the sheet that could not be read.
type RowError struct {
	Row int
	Msg string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
}

// Read parses questions from the first sheet of an xlsx workbook.
func Read(r io.Reader) ([]gateway.QuestionPayload, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	var out []gateway.QuestionPayload
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		q, ok, err := parseRow(i+1, row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, q)
		}
	}
	slog.Debug("question bank read", "sheet", sheets[0], "questions", len(out))
	return out, nil
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(validate.Clean(row[0]), "question")
}

func parseRow(n int, row []string) (gateway.QuestionPayload, bool, error) {
	cells := make([]string, len(row))
	blank := true
	for i, c := range row {
		cells[i] = validate.Clean(c)
		if cells[i] != "" {
			blank = false
		}
	}
	if blank {
		return gateway.QuestionPayload{}, false, nil
	}
	if cells[0] == "" {
		return gateway.QuestionPayload{}, false, &RowError{Row: n, Msg: "question text is missing"}
	}

	var correct string
	var answers []string
	for i, c := range cells {
		switch {
		case i == 1:
			correct = c
		case i > 1 && c != "":
			answers = append(answers, c)
		}
	}
	if len(answers) < minAnswers {
		return gateway.QuestionPayload{}, false, &RowError{Row: n, Msg: fmt.Sprintf("needs at least %d answers", minAnswers)}
	}
	if !slices.Contains(answers, correct) {
		return gateway.QuestionPayload{}, false, &RowError{Row: n, Msg: fmt.Sprintf("correct answer %q is not one of the answers", correct)}
	}
	return gateway.QuestionPayload{Question: cells[0], CorrectAnswer: correct, Answers: answers}, true, nil
}

// Write renders the questions of q as a workbook with a header row.
func Write(w io.Writer, q tree.Quiz) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	width := minAnswers
	for _, qq := range q.Questions {
		width = max(width, len(qq.Answers))
	}
	header := []any{"Question", "Correct answer"}
	for i := range width {
		header = append(header, fmt.Sprintf("Answer %d", i+1))
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, qq := range q.Questions {
		row := []any{qq.Text, ""}
		if a, ok := qq.CorrectAnswer(); ok {
			row[1] = a.Text
		}
		for _, text := range qq.AnswerTexts() {
			row = append(row, text)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing question %s: %w", qq.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
