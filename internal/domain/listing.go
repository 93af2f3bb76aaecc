package domain

// OfferListFilter narrows ListByOwner results. A nil Status lists every status.
type OfferListFilter struct {
	Status *OfferStatus
}

// Matches reports whether o passes the filter.
func (f OfferListFilter) Matches(o *Offer) bool {
	return f.Status == nil || o.Status == *f.Status
}

// PaginationParams is a 1-based page over an owner's offers, newest first.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Offset is (Page-1)*PageSize, or 0 for pages before the first.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}
