package timesheet

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// WriteStatement renders a printable weekly statement for one employee week.
func WriteStatement(w io.Writer, g WeekGroup) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Timesheet Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	employee := g.EmployeeID
	if g.EmployeeName != "" {
		employee = fmt.Sprintf("%s (%s)", g.EmployeeName, g.EmployeeID)
	}
	pdf.Cell(0, 7, "Employee: "+employee)
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Week %d/%d: %s to %s", g.WeekNumber, g.Year, WeekKey(g.WeekStartDate), WeekKey(g.WeekEndDate)))
	pdf.Ln(6)
	pdf.Cell(0, 7, "Status: "+string(g.Status))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 7, "Project / Task", "1", 0, "L", false, 0, "")
	for _, d := range Days {
		pdf.CellFormat(22, 7, d.String()[:3], "1", 0, "C", false, 0, "")
	}
	pdf.CellFormat(24, 7, "Total", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 7, "Status", "1", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range g.Timesheets {
		pdf.CellFormat(45, 7, truncate(e.ProjectID+" / "+e.TaskID, 28), "1", 0, "L", false, 0, "")
		for _, h := range e.Hours() {
			pdf.CellFormat(22, 7, h.StringFixed(2), "1", 0, "R", false, 0, "")
		}
		pdf.CellFormat(24, 7, TaskTotal(e).StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 7, string(e.Status), "1", 1, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(45, 7, "Daily total", "1", 0, "L", false, 0, "")
	for _, h := range g.DailyTotals {
		pdf.CellFormat(22, 7, h.StringFixed(2), "1", 0, "R", false, 0, "")
	}
	pdf.CellFormat(24, 7, g.TotalHours.StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 7, "", "1", 1, "C", false, 0, "")

	return pdf.Output(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
