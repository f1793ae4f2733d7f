package admin

import (
	"fmt"
	"io"
	"time"

	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/models"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"
)

const (
	customersSheet = "Customers"
	photosSheet    = "Photos"
)

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		if err := f.SetCellValue(sheet, cellName(i+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

// ExportExcel writes a workbook with one row per customer, holding each
// section's status, and one row per stored photo.
func ExportExcel(w io.Writer, customers []models.Customer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", customersSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(photosSheet); err != nil {
		return err
	}

	headings := []any{"Name", "District", "PlantType", "Mobile", "Technician", "Address", "CreatedAt"}
	for _, id := range models.AllSections {
		headings = append(headings, string(id))
	}
	if err := writeRow(f, customersSheet, 1, headings...); err != nil {
		return err
	}
	if err := writeRow(f, photosSheet, 1, "Customer", "Section", "Title", "ImageUrl", "Latitude", "Longitude", "Address"); err != nil {
		return err
	}

	photoRow := 2
	for i := range customers {
		card := BuildCard(&customers[i])
		row := []any{card.Name, card.District, card.PlantType, card.Mobile, card.Technician, card.Address, ""}
		if !card.CreatedAt.IsZero() {
			row[6] = card.CreatedAt.Format(time.RFC3339)
		}
		for _, s := range card.Sections {
			row = append(row, string(s.Status))
			for _, p := range s.Photos {
				values := []any{card.Name, string(s.Id), p.Title, p.ImageUrl, "", "", ""}
				if p.Geolocation != nil {
					values[4] = p.Geolocation.Latitude
					values[5] = p.Geolocation.Longitude
					values[6] = p.Geolocation.Address
				}
				if err := writeRow(f, photosSheet, photoRow, values...); err != nil {
					return err
				}
				photoRow++
			}
		}
		if err := writeRow(f, customersSheet, i+2, row...); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// ExportGeoJSON writes a FeatureCollection of every located photo.
func ExportGeoJSON(w io.Writer, customers []models.Customer) error {
	groups := make([][]*geojson.Feature, 0, len(customers))
	for i := range customers {
		groups = append(groups, geo.CustomerPhotoFeatures(&customers[i]))
	}
	raw, err := geo.FeatureCollection(groups...).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}
