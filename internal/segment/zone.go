// Package segment splits a receipt raster into semantic zones using
// projection-histogram gap detection and keyword-anchored column cuts.
package segment

import (
	"image"

	"github.com/MeKo-Tech/receiptminer/internal/raster"
)

// Role tags a zone with its meaning on the receipt.
type Role string

const (
	RoleGeneral       Role = "general"
	RoleProducts      Role = "products"
	RolePayment       Role = "payment"
	RoleCashier       Role = "cashier"
	RoleDateTime      Role = "date-time"
	RoleProductName   Role = "product-name"
	RoleQuantity      Role = "quantity"
	RolePrice         Role = "price"
	RoleAmount        Role = "amount"
	RolePaymentAmount Role = "payment-amount"
	RolePaymentType   Role = "payment-type"
	RolePaymentNames  Role = "payment-names"
	RolePaymentValues Role = "payment-values"
)

// Zone is a labelled view into the receipt raster.
type Zone struct {
	Role   Role
	Raster raster.Raster
}

// Rect returns the zone rectangle in root raster coordinates.
func (z Zone) Rect() image.Rectangle {
	return z.Raster.Bounds().Add(z.Raster.Origin())
}

// Empty reports whether the zone has no pixels.
func (z Zone) Empty() bool { return z.Raster.Empty() }

// sub returns a child zone for the local rectangle rect of z.
func (z Zone) sub(role Role, rect image.Rectangle) (Zone, error) {
	r, err := z.Raster.ClampedRegion(rect)
	if err != nil {
		return Zone{}, err
	}
	return Zone{Role: role, Raster: r}, nil
}

// Rows returns the child zone covering rows [y0, y1) of z.
func (z Zone) Rows(role Role, y0, y1 int) (Zone, error) {
	return z.sub(role, image.Rect(0, y0, z.Raster.Width(), y1))
}

// Cols returns the child zone covering columns [x0, x1) of z.
func (z Zone) Cols(role Role, x0, x1 int) (Zone, error) {
	return z.sub(role, image.Rect(x0, 0, x1, z.Raster.Height()))
}
