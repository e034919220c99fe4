package segment

import (
	"github.com/MeKo-Tech/receiptminer/internal/fuzzy"
	"github.com/MeKo-Tech/receiptminer/internal/ocr"
)

// Column cut source.
const (
	CutsFromHeader    = "header"
	CutsFromHistogram = "histogram"
)

// Columns are the four product sub-columns, left to right.
type Columns struct {
	Name     Zone
	Quantity Zone
	Price    Zone
	Amount   Zone
	// Bounds are the horizontal extents of the columns in products-zone
	// coordinates, in the same order.
	Bounds [4]Span
	Source string
}

// Zones returns the columns left to right.
func (c Columns) Zones() []Zone { return []Zone{c.Name, c.Quantity, c.Price, c.Amount} }

// HeaderCuts locates the four column header words among tokens recognized
// over the products zone and returns their left edges plus the first row
// below the header line.
func (s *Segmenter) HeaderCuts(tokens []ocr.Token) (cuts [4]int, bodyTop int, err error) {
	texts := ocr.Texts(tokens)
	for i, h := range s.cfg.Headers {
		m, ok := fuzzy.Best(h, texts, s.cfg.HeaderThreshold)
		if !ok {
			return cuts, 0, segErr("products", ErrHeaderNotFound, "%q", h)
		}
		t := tokens[m.Index]
		cuts[i] = t.Left
		if t.Bottom() > bodyTop {
			bodyTop = t.Bottom()
		}
	}
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			return cuts, 0, segErr("products", ErrHeaderNotFound, "headers out of order: %v", cuts)
		}
	}
	return cuts, bodyTop, nil
}

// ProductColumns cuts the products zone into name, quantity, price and
// amount columns. Header tokens are tried first; when any header word is
// missing the columns come from the vertical projection histogram instead.
func (s *Segmenter) ProductColumns(products Zone, header []ocr.Token) (Columns, error) {
	if cols, err := s.columnsFromHeader(products, header); err == nil {
		return cols, nil
	}
	return s.columnsFromHistogram(products)
}

func (s *Segmenter) columnsFromHeader(products Zone, header []ocr.Token) (Columns, error) {
	cuts, bodyTop, err := s.HeaderCuts(header)
	if err != nil {
		return Columns{}, err
	}
	w, h := products.Raster.Width(), products.Raster.Height()
	if cuts[0] < 0 || cuts[3] >= w || bodyTop >= h {
		return Columns{}, segErr("products", ErrDegenerateZone, "header cuts %v outside %dx%d", cuts, w, h)
	}
	body, err := products.Rows(RoleProducts, bodyTop, h)
	if err != nil {
		return Columns{}, segErr("products", err, "body below header")
	}
	bounds := [4]Span{
		{Start: 0, End: cuts[1]},
		{Start: cuts[1], End: cuts[2]},
		{Start: cuts[2], End: cuts[3]},
		{Start: cuts[3], End: w},
	}
	return buildColumns(body, bounds, CutsFromHeader)
}

func (s *Segmenter) columnsFromHistogram(products Zone) (Columns, error) {
	hist, err := Project(products.Raster, s.cfg.CleanEdges)
	if err != nil {
		return Columns{}, segErr("products", err, "column histogram")
	}
	pairs := Boundaries(hist.Cols, hist.Height, s.cfg.ProductColumns, Blank)
	if len(pairs) < 4 {
		return Columns{}, segErr("products", ErrTooFewBoundaries, "found %d columns, need 4", len(pairs))
	}
	n := len(pairs)
	bounds := [4]Span{pairs[0], pairs[n-3], pairs[n-2], pairs[n-1]}
	return buildColumns(products, bounds, CutsFromHistogram)
}

func buildColumns(body Zone, bounds [4]Span, source string) (Columns, error) {
	roles := [4]Role{RoleProductName, RoleQuantity, RolePrice, RoleAmount}
	var zones [4]Zone
	for i, b := range bounds {
		z, err := body.Cols(roles[i], b.Start, b.End)
		if err != nil {
			return Columns{}, segErr("products", err, "%s column %v", roles[i], b)
		}
		zones[i] = z
	}
	return Columns{
		Name:     zones[0],
		Quantity: zones[1],
		Price:    zones[2],
		Amount:   zones[3],
		Bounds:   bounds,
		Source:   source,
	}, nil
}
