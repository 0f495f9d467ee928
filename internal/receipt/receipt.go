package receipt

import "encoding/json"

// Address is a structured postal address of the merchant
type Address struct {
	HouseNumber   string `json:"house_number"`
	PoBox         string `json:"po_box"`
	Road          string `json:"road"`
	City          string `json:"city"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	CountryRegion string `json:"country_region"`
	StreetAddress string `json:"street_address"`
	Unit          string `json:"unit"`
	CityDistrict  string `json:"city_district"`
	StateDistrict string `json:"state_district"`
	Suburb        string `json:"suburb"`
	House         string `json:"house"`
	Level         string `json:"level"`
}

// ReceiptItem is one line item of a receipt
type ReceiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	TotalPrice  string `json:"total_price"`
}

// Receipt is the record extracted from an analyzed receipt.
// Amounts are kept as the provider formatted them, not parsed.
type Receipt struct {
	MerchantName    string        `json:"merchant_name"`
	TransactionDate string        `json:"transaction_date"`
	TransactionTime string        `json:"transaction_time"`
	Address         Address       `json:"address"`
	PhoneNumber     string        `json:"phone_number"`
	Subtotal        string        `json:"subtotal"`
	Tax             string        `json:"tax"`
	Tip             string        `json:"tip"`
	Total           string        `json:"total"`
	ReceiptItems    []ReceiptItem `json:"receipt_items"`
}

// AddReceiptItem appends a line item, keeping extraction order
func (r *Receipt) AddReceiptItem(item ReceiptItem) {
	r.ReceiptItems = append(r.ReceiptItems, item)
}

// MarshalJSON always encodes receipt_items as an array
func (r Receipt) MarshalJSON() ([]byte, error) {
	type plain Receipt
	p := plain(r)
	if p.ReceiptItems == nil {
		p.ReceiptItems = []ReceiptItem{}
	}
	return json.Marshal(p)
}
