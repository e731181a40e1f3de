package inventory

import "time"

// Apply returns p with the set fields of patch applied and UpdatedAt moved
// to now.
func (patch ProductPatch) Apply(p Product, now time.Time) Product {
	setIf(&p.Name, patch.Name)
	setIf(&p.SKU, patch.SKU)
	setIf(&p.Description, patch.Description)
	setIf(&p.CurrentStock, patch.CurrentStock)
	setIf(&p.MinStock, patch.MinStock)
	setIf(&p.UnitPrice, patch.UnitPrice)
	setIf(&p.Barcode, patch.Barcode)
	setIf(&p.Location, patch.Location)
	if patch.CategoryID != nil {
		id := *patch.CategoryID
		p.CategoryID = &id
	}
	if patch.SupplierID != nil {
		id := *patch.SupplierID
		p.SupplierID = &id
	}
	if patch.MaxStock != nil {
		v := *patch.MaxStock
		p.MaxStock = &v
	}
	p.UpdatedAt = now
	return p
}

// Apply returns c with the set fields of patch applied.
func (patch CategoryPatch) Apply(c Category) Category {
	setIf(&c.Name, patch.Name)
	setIf(&c.Description, patch.Description)
	setIf(&c.IsMedicine, patch.IsMedicine)
	return c
}

// Apply returns s with the set fields of patch applied and UpdatedAt moved
// to now.
func (patch SupplierPatch) Apply(s Supplier, now time.Time) Supplier {
	setIf(&s.Name, patch.Name)
	setIf(&s.ContactPerson, patch.ContactPerson)
	setIf(&s.Email, patch.Email)
	setIf(&s.Phone, patch.Phone)
	setIf(&s.Address, patch.Address)
	s.UpdatedAt = now
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
