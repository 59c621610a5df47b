// Package export renders meeting minutes into downloadable documents
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
)

// XLSXContentType is the media type of the workbook
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	sheetSummary    = "Summary"
	sheetDecisions  = "Decisions"
	sheetActions    = "Action Items"
	sheetTranscript = "Transcript"
)

// MinutesXLSX builds a workbook with one sheet per section of the minutes
func MinutesXLSX(meeting *entities.Meeting) ([]byte, error) {
	if meeting == nil || meeting.Minutes == nil {
		return nil, fmt.Errorf("meeting has no minutes")
	}
	m := meeting.Minutes

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetDecisions, sheetActions, sheetTranscript} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	summary := [][]any{
		{"Title", meeting.Title},
		{"Date", meeting.CreatedAt.Format("2006-01-02 15:04")},
		{"Language", meeting.Language},
		{"Participants", strings.Join(meeting.Participants, ", ")},
		{"Status", string(meeting.Status)},
		{"Executive summary", m.ExecutiveSummary},
		{"Discussion", m.DiscussionSummary},
		{"Flowchart", m.Flowchart},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return nil, err
	}

	decisions := [][]any{{"#", "Decision"}}
	for i, d := range m.Decisions {
		decisions = append(decisions, []any{i + 1, d.Decision})
	}
	if err := writeRows(f, sheetDecisions, decisions); err != nil {
		return nil, err
	}

	actions := [][]any{{"Task", "Owner", "Due date"}}
	for _, a := range m.ActionItems {
		actions = append(actions, []any{a.Task, a.Owner, a.DueDate})
	}
	if err := writeRows(f, sheetActions, actions); err != nil {
		return nil, err
	}

	transcript := [][]any{{"Line", "Text"}}
	for i, line := range strings.Split(strings.TrimRight(m.FullTranscript, "\n"), "\n") {
		if line == "" {
			continue
		}
		transcript = append(transcript, []any{i + 1, line})
	}
	if err := writeRows(f, sheetTranscript, transcript); err != nil {
		return nil, err
	}

	if err := styleHeaders(f); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleHeaders(f *excelize.File) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetColStyle(sheetSummary, "A", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "B", "B", 100); err != nil {
		return err
	}
	for _, sheet := range []string{sheetDecisions, sheetActions, sheetTranscript} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return err
		}
	}
	return nil
}
