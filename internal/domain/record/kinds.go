package record

// Stock is a stock addition for a medicine
type Stock struct {
	StockID      int64  `json:"stock_id,omitempty"`
	MedicineID   int64  `json:"medicine_id"`
	Quantity     int64  `json:"quantity"`
	BatchNumber  string `json:"batch_number"`
	ExpiryDate   string `json:"expiry_date"`
	DateReceived string `json:"date_received"`
	Supplier     string `json:"supplier,omitempty"`
	Notes        string `json:"notes,omitempty"`
	Linkage
}

func (s *Stock) Kind() Kind             { return KindStock }
func (s *Stock) LedgerID() int64        { return s.StockID }
func (s *Stock) LedgerLinkage() Linkage { return s.Linkage }
func (s *Stock) SetLinkage(l Linkage)   { s.Linkage = l }

// Removal is a stock removal (dispensed, expired, damaged, ...)
type Removal struct {
	RemovalID       int64  `json:"removal_id,omitempty"`
	MedicineID      int64  `json:"medicine_id"`
	StockID         int64  `json:"stock_id,omitempty"`
	QuantityRemoved int64  `json:"quantity_removed"`
	Reason          string `json:"reason"`
	DateRemoved     string `json:"date_removed"`
	Notes           string `json:"notes,omitempty"`
	Linkage
}

func (r *Removal) Kind() Kind             { return KindRemoval }
func (r *Removal) LedgerID() int64        { return r.RemovalID }
func (r *Removal) LedgerLinkage() Linkage { return r.Linkage }
func (r *Removal) SetLinkage(l Linkage)   { r.Linkage = l }
