package books

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVHeader keeps the first two column names of the original spreadsheet.
var CSVHeader = []string{"Titulo", "Precio", "Rating", "Disponible", "URL", "UPC"}

// WriteCSV writes the header and one row per book as utf-8 without a BOM.
func WriteCSV(w io.Writer, books []Book) error {
	writer := csv.NewWriter(w)
	err := writer.Write(CSVHeader)
	if err != nil {
		return err
	}
	for _, b := range books {
		err = writer.Write([]string{
			b.Title,
			b.Price,
			strconv.Itoa(b.Rating),
			strconv.FormatBool(b.InStock),
			b.DetailURL,
			b.UPC,
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
