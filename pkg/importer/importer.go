package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
	"gopkg.in/yaml.v3"

	"decor-inventory-api/internal/models"
)

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	MappingPath string // default "configs/mapping/decor_items.yaml"
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Updated  int            `json:"updated"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version  int                    `yaml:"version"`
	Defaults map[string]string      `yaml:"defaults"`
	Sheets   map[string]SheetConfig `yaml:"sheets"`
}

type SheetConfig struct {
	NaturalKey []string                `yaml:"natural_key"`
	Aliases    map[string][]string     `yaml:"aliases"`
	Columns    map[string]ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Field    string `yaml:"field"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// itemRow is a parsed spreadsheet row ready for upsert.
type itemRow struct {
	Name          string
	Category      string
	Color         string
	Size          string
	Condition     string
	Location      string
	TotalQuantity int
	Price         decimal.Decimal
}

// ImportExcel reads an Excel workbook of decoration items and upserts them
// by name. Rows on sheets without a mapping entry are ignored. With DryRun
// everything runs inside a transaction that is rolled back at the end, so
// the summary reflects what would happen without touching the catalog.
func ImportExcel(ctx context.Context, db *pgxpool.Pool, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	if opts.MappingPath == "" {
		opts.MappingPath = "configs/mapping/decor_items.yaml"
	}
	if opts.MaxErrors == 0 {
		opts.MaxErrors = 50
	}

	mapping, err := loadMappingConfig(opts.MappingPath)
	if err != nil {
		return summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs an io.ReaderAt, so buffer the upload first
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}

	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sheet := range xlFile.Sheets {
		sheetConfig, exists := mapping.Sheets[sheet.Name]
		if !exists {
			continue
		}

		sheetSummary := processSheet(ctx, tx, sheet, sheetConfig, mapping.Defaults)
		summary.Sheets = append(summary.Sheets, sheetSummary)

		summary.Inserted += sheetSummary.Inserted
		summary.Updated += sheetSummary.Updated
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors

		if summary.Errors > opts.MaxErrors {
			return summary, fmt.Errorf("too many errors (%d), stopping import", summary.Errors)
		}
	}

	if opts.DryRun {
		return summary, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("failed to commit import: %w", err)
	}
	return summary, nil
}

func loadMappingConfig(path string) (*MappingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var mapping MappingConfig
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("invalid mapping YAML: %w", err)
	}
	if len(mapping.Sheets) == 0 {
		return nil, fmt.Errorf("mapping %s defines no sheets", path)
	}
	return &mapping, nil
}

func processSheet(ctx context.Context, tx pgx.Tx, sheet *xlsx.Sheet, config SheetConfig, defaults map[string]string) SheetSummary {
	summary := SheetSummary{Name: sheet.Name}

	headerRow, err := sheet.Row(0)
	if err != nil {
		summary.Errors++
		summary.Samples = append(summary.Samples, RowError{
			Sheet:   sheet.Name,
			Row:     1,
			Message: "Failed to read header row: " + err.Error(),
		})
		return summary
	}

	headerMap := parseHeader(headerRow, config.Aliases)

	rowIdx := 1
	for {
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}

		rowData := extractRow(row, headerMap)
		if len(rowData) == 0 {
			summary.Skipped++
			rowIdx++
			continue
		}

		item, err := buildItemRow(rowData, config, defaults)
		if err != nil {
			summary.Errors++
			if len(summary.Samples) < 10 {
				summary.Samples = append(summary.Samples, RowError{
					Sheet:   sheet.Name,
					Row:     rowIdx + 1,
					Message: err.Error(),
				})
			}
			rowIdx++
			continue
		}

		updated, err := upsertItem(ctx, tx, item)
		if err != nil {
			summary.Errors++
			if len(summary.Samples) < 10 {
				summary.Samples = append(summary.Samples, RowError{
					Sheet:   sheet.Name,
					Row:     rowIdx + 1,
					Message: err.Error(),
				})
			}
			rowIdx++
			continue
		}

		if updated {
			summary.Updated++
		} else {
			summary.Inserted++
		}
		rowIdx++
	}

	return summary
}

// parseHeader maps canonical column names to their cell index. Aliases let
// suppliers keep their own spellings ("Qty", "Colour") in the workbook.
func parseHeader(headerRow *xlsx.Row, aliases map[string][]string) map[string]int {
	headerMap := make(map[string]int)

	colIdx := 0
	for {
		cell := headerRow.GetCell(colIdx)
		if cell == nil {
			break
		}
		headerName := strings.TrimSpace(cell.String())
		if headerName == "" {
			colIdx++
			continue
		}

		canonical := strings.ToUpper(headerName)
		for column, names := range aliases {
			for _, alias := range names {
				if strings.EqualFold(alias, headerName) {
					canonical = strings.ToUpper(column)
					break
				}
			}
		}
		headerMap[canonical] = colIdx
		colIdx++
	}

	return headerMap
}

func extractRow(row *xlsx.Row, headerMap map[string]int) map[string]string {
	rowData := make(map[string]string)
	for headerName, colIdx := range headerMap {
		cell := row.GetCell(colIdx)
		if cell == nil {
			continue
		}
		if value := strings.TrimSpace(cell.String()); value != "" {
			rowData[headerName] = value
		}
	}
	return rowData
}

func buildItemRow(rowData map[string]string, config SheetConfig, defaults map[string]string) (itemRow, error) {
	item := itemRow{
		Condition: defaults["condition"],
	}

	for headerName, columnConfig := range config.Columns {
		value, exists := rowData[strings.ToUpper(headerName)]
		if !exists || value == "" {
			if columnConfig.Required {
				return item, fmt.Errorf("missing required column %q", headerName)
			}
			continue
		}

		switch columnConfig.Field {
		case "name":
			item.Name = value
		case "category":
			item.Category = value
		case "color":
			item.Color = value
		case "size":
			item.Size = value
		case "condition":
			item.Condition = value
		case "location":
			item.Location = value
		case "total_quantity":
			qty, err := strconv.Atoi(value)
			if err != nil || qty < 0 {
				return item, fmt.Errorf("invalid quantity %q", value)
			}
			item.TotalQuantity = qty
		case "price":
			price, err := decimal.NewFromString(strings.TrimPrefix(value, "₹"))
			if err != nil || price.IsNegative() {
				return item, fmt.Errorf("invalid price %q", value)
			}
			item.Price = price
		default:
			return item, fmt.Errorf("unknown field %q in mapping", columnConfig.Field)
		}
	}

	if item.Name == "" {
		return item, errors.New("item name is required")
	}
	if !models.IsValidCategory(item.Category) {
		return item, fmt.Errorf("unknown category %q", item.Category)
	}
	if item.Condition == "" {
		item.Condition = "Excellent"
	}
	if !models.IsValidCondition(item.Condition) {
		return item, fmt.Errorf("unknown condition %q", item.Condition)
	}

	return item, nil
}

// upsertItem matches rows to existing items by name. assigned_quantity is
// never touched here, only the booking and return workflows move it.
func upsertItem(ctx context.Context, tx pgx.Tx, item itemRow) (updated bool, err error) {
	var id int64
	err = tx.QueryRow(ctx, "SELECT id FROM items WHERE name = $1", item.Name).Scan(&id)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	if id > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE items
			SET category = $1, color = $2, size = $3, total_quantity = $4,
			    price = $5, condition = $6, location = $7, updated_at = now()
			WHERE id = $8`,
			item.Category, item.Color, item.Size, item.TotalQuantity,
			item.Price, item.Condition, item.Location, id)
		return true, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO items (name, category, color, size, total_quantity, assigned_quantity, price, condition, location)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		item.Name, item.Category, item.Color, item.Size, item.TotalQuantity,
		item.Price, item.Condition, item.Location)
	return false, err
}
