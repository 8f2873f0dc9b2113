package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Statement is a monthly activity summary for one wallet.
type Statement struct {
	AccountID      string
	WalletID       string
	Month          time.Time
	Currency       string
	TotalOutMinor  uint64
	TotalFeesMinor uint64
	GeneratedAt    time.Time
}

// StatementLine is one settled payment on the statement.
type StatementLine struct {
	SettledAt   time.Time
	Rail        string
	ReceiptID   string
	AmountMinor uint64
	FeeMinor    uint64
}

// BuildStatementPDF renders a minimal PDF for a wallet statement.
func BuildStatementPDF(stmt *Statement, lines []StatementLine) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Wallet Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %s", stmt.AccountID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Wallet: %s", stmt.WalletID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Month: %s", stmt.Month.Format("2006-01")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Currency: %s", stmt.Currency))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", stmt.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total Sent (minor units): %d", stmt.TotalOutMinor))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Fees (minor units): %d", stmt.TotalFeesMinor))
	pdf.Ln(8)

	// Lines table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Settled", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Rail", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Receipt", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Fee", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range lines {
		pdf.CellFormat(40, 6, line.SettledAt.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, line.Rail, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, line.ReceiptID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", line.AmountMinor), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", line.FeeMinor), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildStatementXLSX renders a minimal XLSX for a wallet statement.
func BuildStatementXLSX(stmt *Statement, lines []StatementLine) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	linesSheet := "payments"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(linesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Wallet Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Account")
	_ = f.SetCellValue(summarySheet, "B3", stmt.AccountID)
	_ = f.SetCellValue(summarySheet, "A4", "Wallet")
	_ = f.SetCellValue(summarySheet, "B4", stmt.WalletID)
	_ = f.SetCellValue(summarySheet, "A5", "Month")
	_ = f.SetCellValue(summarySheet, "B5", stmt.Month.Format("2006-01"))
	_ = f.SetCellValue(summarySheet, "A6", "Currency")
	_ = f.SetCellValue(summarySheet, "B6", stmt.Currency)
	_ = f.SetCellValue(summarySheet, "A7", "Total Sent (minor units)")
	_ = f.SetCellValue(summarySheet, "B7", stmt.TotalOutMinor)
	_ = f.SetCellValue(summarySheet, "A8", "Total Fees (minor units)")
	_ = f.SetCellValue(summarySheet, "B8", stmt.TotalFeesMinor)

	_ = f.SetCellValue(linesSheet, "A1", "Settled")
	_ = f.SetCellValue(linesSheet, "B1", "Rail")
	_ = f.SetCellValue(linesSheet, "C1", "Receipt")
	_ = f.SetCellValue(linesSheet, "D1", "Amount")
	_ = f.SetCellValue(linesSheet, "E1", "Fee")
	for i, line := range lines {
		row := i + 2
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("A%d", row), line.SettledAt.Format("2006-01-02"))
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("B%d", row), line.Rail)
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("C%d", row), line.ReceiptID)
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("D%d", row), line.AmountMinor)
		_ = f.SetCellValue(linesSheet, fmt.Sprintf("E%d", row), line.FeeMinor)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
