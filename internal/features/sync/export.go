package sync

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const exportLimit = 10000

var exportColumns = []string{"Created At", "Type", "Status", "Total", "Synced", "Failed", "Duration (ms)", "Error"}

// ExportLogs renders the tenant's recent sync history as an XLSX workbook
func (s *SyncServiceImpl) ExportLogs(ctx context.Context, tenantID primitive.ObjectID) ([]byte, string, error) {
	logs, err := s.logs.List(ctx, tenantID, exportLimit)
	if err != nil {
		return nil, "", err
	}

	data, err := renderLogsWorkbook(logs)
	if err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("sync_logs_%s_%s.xlsx", tenantID.Hex(), s.now().UTC().Format("20060102"))
	return data, filename, nil
}

func renderLogsWorkbook(logs []SyncLog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sync Logs"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, l := range logs {
		row := []interface{}{
			l.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(l.SyncType),
			string(l.Status),
			l.ItemsTotal,
			l.ItemsSynced,
			l.ItemsFailed,
			l.DurationMs,
			l.ErrorLog,
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	for i := range exportColumns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}
	last, _ := excelize.ColumnNumberToName(len(exportColumns))
	f.SetColWidth(sheetName, last, last, 60)

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
