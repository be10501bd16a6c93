// Package catalog serves the static product list. Products are compiled in;
// there is no inventory backend for this storefront.
package catalog

import "github.com/daniloescobar15/3dPrinterStoreFront/internal/models"

var products = []models.Product{
	{
		ID:          1,
		Name:        "Prusa i3 MK4",
		Description: "Professional 3D printer for general use",
		Price:       1299.99,
		Image:       "/static/img/prusa-i3-mk4.png",
		Specs:       []string{"XY: 250x210mm", "Z: 220mm", "Nozzle: 0.4mm", "Hot bed: 60°C"},
	},
	{
		ID:          2,
		Name:        "Creality Ender 3 V3",
		Description: "Affordable and reliable 3D printer",
		Price:       299.99,
		Image:       "/static/img/ender-3-v3.png",
		Specs:       []string{"XY: 235x235mm", "Z: 270mm", "Nozzle: 0.4mm", "Hot bed: 60°C"},
	},
	{
		ID:          3,
		Name:        "Bambu Lab X1 Carbon",
		Description: "High speed 3D printer with built-in camera",
		Price:       1799.99,
		Image:       "/static/img/bambu-x1-carbon.png",
		Specs:       []string{"XY: 256x256mm", "Z: 256mm", "Speed: 500mm/s", "Built-in camera"},
	},
	{
		ID:          4,
		Name:        "Formlabs Form 3B",
		Description: "Precision resin 3D printer",
		Price:       3499.99,
		Image:       "/static/img/form-3b.png",
		Specs:       []string{"XY: 145x82mm", "Resolution: 25 microns", "SLA technology", "Advanced software"},
	},
	{
		ID:          5,
		Name:        "Ultimaker S5",
		Description: "Industrial dual-extruder 3D printer",
		Price:       4799.99,
		Image:       "/static/img/ultimaker-s5.png",
		Specs:       []string{"XY: 330x240mm", "Z: 300mm", "Dual extruder", "Wi-Fi connectivity"},
	},
	{
		ID:          6,
		Name:        "Anycubic Vyper",
		Description: "Fast 3D printer with automatic leveling",
		Price:       399.99,
		Image:       "/static/img/anycubic-vyper.png",
		Specs:       []string{"XY: 245x245mm", "Z: 260mm", "Auto leveling", "Touch screen"},
	},
}

// Products returns the full catalog. The result is a deep copy; callers may
// not mutate the catalog.
func Products() []models.Product {
	out := make([]models.Product, len(products))
	for i, p := range products {
		out[i] = clone(p)
	}
	return out
}

// ProductByID returns the product with the given ID, or nil when unknown.
func ProductByID(id int) *models.Product {
	for _, p := range products {
		if p.ID == id {
			cp := clone(p)
			return &cp
		}
	}
	return nil
}

// clone copies a product including its specs slice, so callers can never
// reach the catalog's backing arrays.
func clone(p models.Product) models.Product {
	p.Specs = append([]string(nil), p.Specs...)
	return p
}
