package document

// FieldName is a top-level field recognized by the prebuilt receipt model
type FieldName string

const (
	MerchantName        FieldName = "MerchantName"
	TransactionDate     FieldName = "TransactionDate"
	TransactionTime     FieldName = "TransactionTime"
	MerchantAddress     FieldName = "MerchantAddress"
	MerchantPhoneNumber FieldName = "MerchantPhoneNumber"
	Items               FieldName = "Items"
	Subtotal            FieldName = "Subtotal"
	TotalTax            FieldName = "TotalTax"
	Tip                 FieldName = "Tip"
	Total               FieldName = "Total"
)

// FieldNames lists the receipt vocabulary in the order fields are read
var FieldNames = []FieldName{
	MerchantName,
	TransactionDate,
	MerchantAddress,
	MerchantPhoneNumber,
	TransactionTime,
	Items,
	Subtotal,
	TotalTax,
	Tip,
	Total,
}

// ItemFieldName is a field of a single line item inside Items
type ItemFieldName string

const (
	Description ItemFieldName = "Description"
	Quantity    ItemFieldName = "Quantity"
	Price       ItemFieldName = "Price"
	TotalPrice  ItemFieldName = "TotalPrice"
)

// ItemFieldNames lists the line item vocabulary in the order fields are read
var ItemFieldNames = []ItemFieldName{Description, Quantity, Price, TotalPrice}

// FieldType is the provider's declared value type for a field
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeDate        FieldType = "date"
	TypeTime        FieldType = "time"
	TypePhoneNumber FieldType = "phoneNumber"
	TypeNumber      FieldType = "number"
	TypeInteger     FieldType = "integer"
	TypeCurrency    FieldType = "currency"
	TypeAddress     FieldType = "address"
	TypeArray       FieldType = "array"
	TypeObject      FieldType = "object"
)

// Currency is a monetary amount as reported by the provider
type Currency struct {
	Amount         float64 `json:"amount"`
	CurrencySymbol string  `json:"currencySymbol,omitempty"`
	CurrencyCode   string  `json:"currencyCode,omitempty"`
}

// Address is the provider's structured postal address
type Address struct {
	HouseNumber   string `json:"houseNumber,omitempty"`
	PoBox         string `json:"poBox,omitempty"`
	Road          string `json:"road,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryRegion string `json:"countryRegion,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
	Unit          string `json:"unit,omitempty"`
	CityDistrict  string `json:"cityDistrict,omitempty"`
	StateDistrict string `json:"stateDistrict,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	House         string `json:"house,omitempty"`
	Level         string `json:"level,omitempty"`
}

// Field is a single recognized value with the provider's confidence.
// At most one of the Value* members is set, matching Type.
type Field struct {
	Type             FieldType        `json:"type"`
	Content          string           `json:"content,omitempty"`
	Confidence       float64          `json:"confidence"`
	ValueString      *string          `json:"valueString,omitempty"`
	ValueNumber      *float64         `json:"valueNumber,omitempty"`
	ValueInteger     *int64           `json:"valueInteger,omitempty"`
	ValueDate        *string          `json:"valueDate,omitempty"`
	ValueTime        *string          `json:"valueTime,omitempty"`
	ValuePhoneNumber *string          `json:"valuePhoneNumber,omitempty"`
	ValueCurrency    *Currency        `json:"valueCurrency,omitempty"`
	ValueAddress     *Address         `json:"valueAddress,omitempty"`
	ValueArray       []Field          `json:"valueArray,omitempty"`
	ValueObject      map[string]Field `json:"valueObject,omitempty"`
}

// Lookup returns a line item sub-field when f is an item object
func (f Field) Lookup(name ItemFieldName) (Field, bool) {
	if f.ValueObject == nil {
		return Field{}, false
	}
	sub, ok := f.ValueObject[string(name)]
	return sub, ok
}

// Items returns the elements of an array field in provider order.
// Non-array fields have no items.
func (f Field) Items() []Field {
	return f.ValueArray
}

// Document is one analyzed document (receipt) in a provider result
type Document struct {
	DocType    string           `json:"docType"`
	Confidence float64          `json:"confidence"`
	Fields     map[string]Field `json:"fields"`
}

// Lookup returns the named field if the provider recognized it
func (d Document) Lookup(name FieldName) (Field, bool) {
	if d.Fields == nil {
		return Field{}, false
	}
	f, ok := d.Fields[string(name)]
	return f, ok
}

// AnalyzeResult is the payload of a finished document analysis operation
type AnalyzeResult struct {
	APIVersion string     `json:"apiVersion"`
	ModelID    string     `json:"modelId"`
	Content    string     `json:"content"`
	Documents  []Document `json:"documents"`
}
