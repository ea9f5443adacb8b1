package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/pagesift/models"
)

const maxTables = 10

// Tables reads the first ten tables. A table with neither th cells nor
// td rows is dropped.
func Tables(d *Document) []models.Table {
	tables := []models.Table{}
	d.doc.Find("table").EachWithBreak(func(i int, t *goquery.Selection) bool {
		if i >= maxTables {
			return false
		}
		headers := []string{}
		t.Find("th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, trimmedText(th))
		})

		rows := [][]string{}
		t.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("td").Each(func(_ int, td *goquery.Selection) {
				cells = append(cells, trimmedText(td))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})

		if len(headers) > 0 || len(rows) > 0 {
			tables = append(tables, models.Table{Headers: headers, Rows: rows})
		}
		return true
	})
	return tables
}
