package receipt

import "github.com/zombor/receipt-vision/internal/document"

// monetary fields are rendered with Field.Monetary, everything else with Field.Text
var monetary = map[string]bool{
	string(document.TotalTax):   true,
	string(document.Tip):        true,
	string(document.Total):      true,
	string(document.Price):      true,
	string(document.TotalPrice): true,
}

// Map projects analyzed documents onto a single Receipt.
//
// Documents are applied in order to the same record: a field present in a
// later document overwrites the earlier value, absent fields are left alone
// and line items of every document are appended. Confidence never gates a
// field; it is only reported to sink, which may be nil.
func Map(docs []document.Document, sink EventSink) Receipt {
	var r Receipt
	for i, doc := range docs {
		applyDocument(&r, i+1, doc, sink)
	}
	return r
}

// MapEach returns one Receipt per analyzed document
func MapEach(docs []document.Document, sink EventSink) []Receipt {
	receipts := make([]Receipt, 0, len(docs))
	for i, doc := range docs {
		var r Receipt
		applyDocument(&r, i+1, doc, sink)
		receipts = append(receipts, r)
	}
	return receipts
}

func applyDocument(r *Receipt, index int, doc document.Document, sink EventSink) {
	emit(sink, Event{Kind: DocumentStarted, Document: index, DocType: doc.DocType})

	for _, name := range document.FieldNames {
		f, ok := doc.Lookup(name)
		if !ok {
			continue
		}

		if name == document.Items {
			for n, item := range f.Items() {
				r.AddReceiptItem(mapItem(index, n+1, item, sink))
			}
			continue
		}

		value := render(string(name), f)
		switch name {
		case document.MerchantName:
			r.MerchantName = value
		case document.TransactionDate:
			r.TransactionDate = value
		case document.TransactionTime:
			r.TransactionTime = value
		case document.MerchantAddress:
			r.Address = mapAddress(f)
		case document.MerchantPhoneNumber:
			r.PhoneNumber = value
		case document.Subtotal:
			r.Subtotal = value
		case document.TotalTax:
			r.Tax = value
		case document.Tip:
			r.Tip = value
		case document.Total:
			r.Total = value
		}
		emit(sink, Event{
			Kind:       FieldObserved,
			Document:   index,
			Field:      string(name),
			Value:      value,
			Confidence: f.Confidence,
		})
	}

	emit(sink, Event{Kind: DocumentFinished, Document: index, DocType: doc.DocType})
}

func mapItem(docIndex, itemIndex int, item document.Field, sink EventSink) ReceiptItem {
	var ri ReceiptItem
	for _, name := range document.ItemFieldNames {
		f, ok := item.Lookup(name)
		if !ok {
			continue
		}

		value := render(string(name), f)
		switch name {
		case document.Description:
			ri.Description = value
		case document.Quantity:
			ri.Quantity = value
		case document.Price:
			ri.Price = value
		case document.TotalPrice:
			ri.TotalPrice = value
		}
		emit(sink, Event{
			Kind:       FieldObserved,
			Document:   docIndex,
			Item:       itemIndex,
			Field:      string(name),
			Value:      value,
			Confidence: f.Confidence,
		})
	}
	return ri
}

// mapAddress copies the structured address. Providers that only report the
// flattened text get it in StreetAddress.
func mapAddress(f document.Field) Address {
	a := f.ValueAddress
	if a == nil {
		if f.ValueString != nil {
			return Address{StreetAddress: *f.ValueString}
		}
		return Address{StreetAddress: f.Content}
	}
	return Address{
		HouseNumber:   a.HouseNumber,
		PoBox:         a.PoBox,
		Road:          a.Road,
		City:          a.City,
		State:         a.State,
		PostalCode:    a.PostalCode,
		CountryRegion: a.CountryRegion,
		StreetAddress: a.StreetAddress,
		Unit:          a.Unit,
		CityDistrict:  a.CityDistrict,
		StateDistrict: a.StateDistrict,
		Suburb:        a.Suburb,
		House:         a.House,
		Level:         a.Level,
	}
}

func render(name string, f document.Field) string {
	if monetary[name] {
		return f.Monetary()
	}
	if f.ValueAddress != nil || f.Type == document.TypeAddress {
		return f.Content
	}
	return f.Text()
}

func emit(sink EventSink, e Event) {
	if sink != nil {
		sink.Emit(e)
	}
}
