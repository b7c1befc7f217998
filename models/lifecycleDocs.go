package models

// LifecycleDocument is implemented by every document carrying the shared
// status machine. DocumentType doubles as the reference type in the audit
// trail and the approval tables.
type LifecycleDocument interface {
	GetId() int
	CurrentStatus() DocumentStatus
	DocumentType() string
}

func (f *SalesForecast) CurrentStatus() DocumentStatus { return f.Status }
func (f *SalesForecast) DocumentType() string          { return "SalesForecast" }

func (o *SalesOrder) CurrentStatus() DocumentStatus { return o.Status }
func (o *SalesOrder) DocumentType() string          { return "SalesOrder" }

func (o *PurchaseOrder) CurrentStatus() DocumentStatus { return o.Status }
func (o *PurchaseOrder) DocumentType() string          { return "PurchaseOrder" }

func (r *Receipt) CurrentStatus() DocumentStatus { return r.Status }
func (r *Receipt) DocumentType() string          { return "Receipt" }

func (p *Picking) CurrentStatus() DocumentStatus { return p.Status }
func (p *Picking) DocumentType() string          { return "Picking" }

func (d *Delivery) CurrentStatus() DocumentStatus { return d.Status }
func (d *Delivery) DocumentType() string          { return "Delivery" }

func (s *Stocktaking) CurrentStatus() DocumentStatus { return s.Status }
func (s *Stocktaking) DocumentType() string          { return "Stocktaking" }

func (i *PurchaseInvoice) CurrentStatus() DocumentStatus { return i.Status }
func (i *PurchaseInvoice) DocumentType() string          { return "PurchaseInvoice" }

func (i *SalesInvoice) CurrentStatus() DocumentStatus { return i.Status }
func (i *SalesInvoice) DocumentType() string          { return "SalesInvoice" }

func (o *OutsourceOrder) CurrentStatus() DocumentStatus { return o.Status }
func (o *OutsourceOrder) DocumentType() string          { return "OutsourceOrder" }
func (o OutsourceOrder) GetId() int                     { return o.ID }
