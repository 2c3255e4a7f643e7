// Package report renders session reports for download: run statistics, alarm
// summary and the alarm log, as PDF or XLSX.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"coldrig-monitor/internal/monitoring/application"
	monitoring "coldrig-monitor/internal/monitoring/domain"
)

// BuildSessionPDF renders a PDF report for a session.
func BuildSessionPDF(snapshot application.Snapshot, alarms []monitoring.AlarmEvent) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Test Run Monitoring Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Session: %s", snapshot.SessionID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Workstation: %s", snapshot.WorkstationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", snapshot.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", formatTime(snapshot.StartedAt)))
	pdf.Ln(5)
	if !snapshot.StoppedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Stopped: %s", formatTime(snapshot.StoppedAt)))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Records Processed: %d", snapshot.Statistics.RecordsProcessed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alarms Generated: %d", snapshot.Statistics.AlarmsGenerated))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Processing Speed (rec/s): %.2f", snapshot.Statistics.ProcessingSpeed))
	pdf.Ln(5)
	summary := snapshot.AlarmSummary
	pdf.Cell(0, 6, fmt.Sprintf("Alarms by Severity: critical=%d high=%d medium=%d low=%d",
		summary.Critical, summary.High, summary.Medium, summary.Low))
	pdf.Ln(8)

	// Alarm table
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(35, 6, "Time", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Rule", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Sensor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Threshold", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alarm := range alarms {
		pdf.CellFormat(35, 6, alarm.Timestamp.Format("2006-01-02 15:04:05"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, alarm.RuleName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(alarm.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, alarm.TriggeringSensor, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", alarm.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", alarm.Threshold), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSessionXLSX renders an XLSX report for a session.
func BuildSessionXLSX(snapshot application.Snapshot, alarms []monitoring.AlarmEvent) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alarmsSheet := "alarms"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(alarmsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Test Run Monitoring Report")
	_ = f.SetCellValue(summarySheet, "A3", "Session")
	_ = f.SetCellValue(summarySheet, "B3", snapshot.SessionID)
	_ = f.SetCellValue(summarySheet, "A4", "Workstation")
	_ = f.SetCellValue(summarySheet, "B4", snapshot.WorkstationID)
	_ = f.SetCellValue(summarySheet, "A5", "Status")
	_ = f.SetCellValue(summarySheet, "B5", string(snapshot.Status))
	_ = f.SetCellValue(summarySheet, "A6", "Started")
	_ = f.SetCellValue(summarySheet, "B6", formatTime(snapshot.StartedAt))
	_ = f.SetCellValue(summarySheet, "A7", "Stopped")
	_ = f.SetCellValue(summarySheet, "B7", formatTime(snapshot.StoppedAt))
	_ = f.SetCellValue(summarySheet, "A8", "Records Processed")
	_ = f.SetCellValue(summarySheet, "B8", snapshot.Statistics.RecordsProcessed)
	_ = f.SetCellValue(summarySheet, "A9", "Alarms Generated")
	_ = f.SetCellValue(summarySheet, "B9", snapshot.Statistics.AlarmsGenerated)
	_ = f.SetCellValue(summarySheet, "A10", "Processing Speed (rec/s)")
	_ = f.SetCellValue(summarySheet, "B10", snapshot.Statistics.ProcessingSpeed)
	_ = f.SetCellValue(summarySheet, "A11", "Critical")
	_ = f.SetCellValue(summarySheet, "B11", snapshot.AlarmSummary.Critical)
	_ = f.SetCellValue(summarySheet, "A12", "High")
	_ = f.SetCellValue(summarySheet, "B12", snapshot.AlarmSummary.High)
	_ = f.SetCellValue(summarySheet, "A13", "Medium")
	_ = f.SetCellValue(summarySheet, "B13", snapshot.AlarmSummary.Medium)
	_ = f.SetCellValue(summarySheet, "A14", "Low")
	_ = f.SetCellValue(summarySheet, "B14", snapshot.AlarmSummary.Low)

	headers := []string{"Time", "Rule", "Severity", "Sensor", "Value", "Threshold", "Status", "Message"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(alarmsSheet, cell, header)
	}
	for i, alarm := range alarms {
		row := i + 2
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("A%d", row), alarm.Timestamp.Format("2006-01-02 15:04:05"))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("B%d", row), alarm.RuleName)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("C%d", row), string(alarm.Severity))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("D%d", row), alarm.TriggeringSensor)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("E%d", row), alarm.Value)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("F%d", row), alarm.Threshold)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("G%d", row), string(alarm.Status))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("H%d", row), alarm.Message)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
