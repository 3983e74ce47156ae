package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iWorld-y/news_crawler/internal/model"
)

// SheetName 导出表格的工作表名
const SheetName = "Articles"

// Columns 表头，顺序与 ArticleRecord 字段一致
var Columns = []string{
	"keyword", "title", "url", "publish_date", "location",
	"summary", "category", "sentiment", "recommendation",
}

// XLSXFileName 例如 news_results_20241014_0930.xlsx
func XLSXFileName(now time.Time) string {
	return fmt.Sprintf("news_results_%s.xlsx", now.Format("20060102_1504"))
}

// ReportFileName 例如 news_report_20241014_0930.txt
func ReportFileName(now time.Time) string {
	return fmt.Sprintf("news_report_%s.txt", now.Format("20060102_1504"))
}

// WriteXLSX 把记录写成 xlsx，第一行为表头
func WriteXLSX(w io.Writer, records []model.ArticleRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(Columns))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 24); err != nil {
		return err
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := recordRow(rec)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// ReadXLSX 读取 WriteXLSX 生成的文件，按表头定位列
func ReadXLSX(r io.Reader) ([]model.ArticleRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	pos := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		pos[name] = i
	}
	for _, c := range Columns {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	records := make([]model.ArticleRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// GetRows 会省略行尾的空单元格
		get := func(col string) string {
			if i := pos[col]; i < len(row) {
				return row[i]
			}
			return ""
		}
		records = append(records, model.ArticleRecord{
			Keyword:        get("keyword"),
			Title:          get("title"),
			URL:            get("url"),
			PublishDate:    get("publish_date"),
			Location:       get("location"),
			Summary:        get("summary"),
			Category:       get("category"),
			Sentiment:      get("sentiment"),
			Recommendation: get("recommendation"),
		})
	}
	return records, nil
}

// WriteReport 纯文本报告，首行为生成时间和记录数
func WriteReport(w io.Writer, report model.Report) error {
	_, err := fmt.Fprintf(w, "Generated: %s\nRecords: %d\n\n%s\n",
		report.GeneratedAt.Format(model.PublishDateLayout), report.RecordCount, report.Text)
	return err
}

// SaveFiles 把数据集和报告写到 dir 下，报告为空时不生成 txt
func SaveFiles(dir string, now time.Time, records []model.ArticleRecord, report model.Report) (xlsxPath, reportPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create export dir: %w", err)
	}

	xlsxPath = filepath.Join(dir, XLSXFileName(now))
	if err := writeFile(xlsxPath, func(w io.Writer) error { return WriteXLSX(w, records) }); err != nil {
		return "", "", err
	}

	if report.IsZero() {
		return xlsxPath, "", nil
	}
	reportPath = filepath.Join(dir, ReportFileName(now))
	if err := writeFile(reportPath, func(w io.Writer) error { return WriteReport(w, report) }); err != nil {
		return xlsxPath, "", err
	}
	return xlsxPath, reportPath, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRow(rec model.ArticleRecord) []interface{} {
	return []interface{}{
		rec.Keyword, rec.Title, rec.URL, rec.PublishDate, rec.Location,
		rec.Summary, rec.Category, rec.Sentiment, rec.Recommendation,
	}
}
