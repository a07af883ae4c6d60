// 运行汇总导出为xlsx，方便人工核对各区域的爬取情况
package exporter

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"finspider/src/entity"
)

var headers = []string{"区域", "是否成功", "网站", "报告数", "下载文件数", "错误"}

// WriteSummaryXLSX 把汇总写入xlsx文件
func WriteSummaryXLSX(path string, sum *entity.Summary) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, r := range sum.Results {
		row := i + 2
		success := "否"
		if r.Success {
			success = "是"
		}
		values := []interface{}{
			r.Region, success, r.Website, r.ReportsFound, r.FilesDownloaded,
			strings.Join(r.Errors, "; "),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	// 末行统计
	statRow := len(sum.Results) + 3
	cell, err := excelize.CoordinatesToCellName(1, statRow)
	if err != nil {
		return err
	}
	stat := fmt.Sprintf("目标年份 %d：成功 %d / %d，共下载 %d 个文件",
		sum.TargetYear, sum.SuccessCount, sum.TotalRegions, sum.TotalFiles)
	if err := f.SetCellValue(sheet, cell, stat); err != nil {
		return err
	}

	return f.SaveAs(path)
}
