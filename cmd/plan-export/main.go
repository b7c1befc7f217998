// plan-export writes one production plan to an xlsx workbook.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/plan-export -tenant <tenant-id> -plan <plan-id> [-out plan.xlsx]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/xuri/excelize/v2"
)

func main() {
	tenantId := flag.String("tenant", "", "tenant id")
	planId := flag.Int("plan", 0, "plan id to export")
	out := flag.String("out", "plan.xlsx", "output file")
	flag.Parse()

	if *tenantId == "" || *planId <= 0 {
		fmt.Fprintln(os.Stderr, "usage: plan-export -tenant <tenant-id> -plan <plan-id> [-out plan.xlsx]")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := utils.SetTenantIdInContext(context.Background(), *tenantId)
	plan, err := models.FetchPlanWithResults(ctx, *tenantId, *planId)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load plan: %v\n", err)
		os.Exit(1)
	}

	if err := exportPlan(plan, *out); err != nil {
		fmt.Fprintf(os.Stderr, "failed to export: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Exported plan %s (%d items, %d warnings) to %s\n",
		plan.Code, len(plan.Items), len(plan.Warnings), *out)
}

func exportPlan(plan *models.ProductionPlan, filename string) error {
	f := excelize.NewFile()
	sheet := "Items"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Material", "Level", "Bucket", "Due", "Start",
		"Gross", "Available", "Safety", "Net", "Planned",
		"Action", "Status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	const dateLayout = "2006-01-02"
	for row, item := range plan.Items {
		values := []interface{}{
			item.MaterialId,
			item.BomLevel,
			item.BucketDate.Format(dateLayout),
			item.DueDate.Format(dateLayout),
			item.SuggestedStartDate.Format(dateLayout),
			item.GrossQuantity.String(),
			item.AvailableInventory.String(),
			item.SafetyStock.String(),
			item.NetQuantity.String(),
			item.PlannedQuantity.String(),
			string(item.SuggestedAction),
			string(item.ExecutionStatus),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if len(plan.Warnings) > 0 {
		warnSheet := "Warnings"
		if _, err := f.NewSheet(warnSheet); err != nil {
			return err
		}
		f.SetCellValue(warnSheet, "A1", "Kind")
		f.SetCellValue(warnSheet, "B1", "Material")
		f.SetCellValue(warnSheet, "C1", "Message")
		for row, w := range plan.Warnings {
			f.SetCellValue(warnSheet, "A"+fmt.Sprint(row+2), string(w.Kind))
			f.SetCellValue(warnSheet, "B"+fmt.Sprint(row+2), w.MaterialId)
			f.SetCellValue(warnSheet, "C"+fmt.Sprint(row+2), w.Message)
		}
	}

	return f.SaveAs(filename)
}
