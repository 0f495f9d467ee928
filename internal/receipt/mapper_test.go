package receipt

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-vision/internal/document"
)

func stringField(v string, confidence float64) document.Field {
	return document.Field{Type: document.TypeString, Content: v, ValueString: &v, Confidence: confidence}
}

func numberField(v float64, confidence float64) document.Field {
	return document.Field{Type: document.TypeNumber, ValueNumber: &v, Confidence: confidence}
}

func currencyField(amount float64) document.Field {
	return document.Field{Type: document.TypeCurrency, ValueCurrency: &document.Currency{Amount: amount}, Confidence: 0.9}
}

func itemField(fields map[string]document.Field) document.Field {
	return document.Field{Type: document.TypeObject, ValueObject: fields}
}

// sampleDocument is {MerchantName: Acme, Total: 12.50, Items: [{Widget, 2, 5.00, 10.00}]}
func sampleDocument() document.Document {
	return document.Document{
		DocType: "receipt.retailMeal",
		Fields: map[string]document.Field{
			"MerchantName": stringField("Acme", 0.98),
			"Total":        currencyField(12.50),
			"Items": {
				Type: document.TypeArray,
				ValueArray: []document.Field{
					itemField(map[string]document.Field{
						"Description": stringField("Widget", 0.9),
						"Quantity":    numberField(2, 0.8),
						"Price":       currencyField(5.00),
						"TotalPrice":  currencyField(10.00),
					}),
				},
			},
		},
	}
}

var _ = Describe("Map", func() {
	var (
		docs   []document.Document
		events []Event
		r      Receipt
	)

	BeforeEach(func() {
		docs = []document.Document{sampleDocument()}
		events = nil
	})

	JustBeforeEach(func() {
		r = Map(docs, EventFunc(func(e Event) { events = append(events, e) }))
	})

	When("mapping the sample receipt", func() {
		It("copies the merchant name", func() {
			Expect(r.MerchantName).To(Equal("Acme"))
		})

		It("renders the total as a float string", func() {
			Expect(r.Total).To(Equal("12.5"))
		})

		It("maps the line item", func() {
			Expect(r.ReceiptItems).To(Equal([]ReceiptItem{
				{Description: "Widget", Quantity: "2", Price: "5.0", TotalPrice: "10.0"},
			}))
		})

		It("leaves absent fields empty", func() {
			Expect(r.TransactionDate).To(BeEmpty())
			Expect(r.TransactionTime).To(BeEmpty())
			Expect(r.PhoneNumber).To(BeEmpty())
			Expect(r.Subtotal).To(BeEmpty())
			Expect(r.Tax).To(BeEmpty())
			Expect(r.Tip).To(BeEmpty())
			Expect(r.Address).To(Equal(Address{}))
		})

		It("serializes with the expected keys", func() {
			out, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(MatchJSON(`{
				"merchant_name": "Acme",
				"transaction_date": "",
				"transaction_time": "",
				"address": {
					"house_number": "", "po_box": "", "road": "", "city": "", "state": "",
					"postal_code": "", "country_region": "", "street_address": "", "unit": "",
					"city_district": "", "state_district": "", "suburb": "", "house": "", "level": ""
				},
				"phone_number": "",
				"subtotal": "",
				"tax": "",
				"tip": "",
				"total": "12.5",
				"receipt_items": [
					{"description": "Widget", "quantity": "2", "price": "5.0", "total_price": "10.0"}
				]
			}`))
		})

		It("brackets the document with events", func() {
			Expect(events[0]).To(Equal(Event{Kind: DocumentStarted, Document: 1, DocType: "receipt.retailMeal"}))
			Expect(events[len(events)-1]).To(Equal(Event{Kind: DocumentFinished, Document: 1, DocType: "receipt.retailMeal"}))
		})

		It("reports every copied field with its confidence", func() {
			Expect(events).To(ContainElement(Event{
				Kind: FieldObserved, Document: 1, Field: "MerchantName", Value: "Acme", Confidence: 0.98,
			}))
			Expect(events).To(ContainElement(Event{
				Kind: FieldObserved, Document: 1, Item: 1, Field: "Quantity", Value: "2", Confidence: 0.8,
			}))
			Expect(events).To(HaveLen(2 + 2 + 4))
		})
	})

	When("there are no documents", func() {
		BeforeEach(func() {
			docs = nil
		})

		It("returns an empty receipt", func() {
			Expect(r.MerchantName).To(BeEmpty())
			Expect(r.ReceiptItems).To(BeEmpty())
			Expect(events).To(BeEmpty())
		})

		It("still encodes receipt_items as an array", func() {
			out, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(ContainSubstring(`"receipt_items":[]`))
		})
	})

	When("confidence is low", func() {
		BeforeEach(func() {
			docs[0].Fields["MerchantName"] = stringField("Blurry", 0.01)
		})

		It("still copies the field", func() {
			Expect(r.MerchantName).To(Equal("Blurry"))
		})
	})

	When("the receipt has several items", func() {
		BeforeEach(func() {
			items := docs[0].Fields["Items"]
			for _, name := range []string{"Apple", "Banana", "Cherry"} {
				items.ValueArray = append(items.ValueArray, itemField(map[string]document.Field{
					"Description": stringField(name, 0.9),
				}))
			}
			docs[0].Fields["Items"] = items
		})

		It("keeps them in order", func() {
			Expect(r.ReceiptItems).To(HaveLen(4))
			Expect(r.ReceiptItems[1]).To(Equal(ReceiptItem{Description: "Apple"}))
			Expect(r.ReceiptItems[2].Description).To(Equal("Banana"))
			Expect(r.ReceiptItems[3].Description).To(Equal("Cherry"))
		})
	})

	When("every field is present", func() {
		BeforeEach(func() {
			date := "2024-03-20"
			tm := "13:45:00"
			phone := "+81312345678"
			docs[0].Fields["TransactionDate"] = document.Field{Type: document.TypeDate, ValueDate: &date}
			docs[0].Fields["TransactionTime"] = document.Field{Type: document.TypeTime, ValueTime: &tm}
			docs[0].Fields["MerchantPhoneNumber"] = document.Field{Type: document.TypePhoneNumber, ValuePhoneNumber: &phone}
			docs[0].Fields["Subtotal"] = numberField(11, 0.9)
			docs[0].Fields["TotalTax"] = currencyField(1.5)
			docs[0].Fields["Tip"] = numberField(0, 0.9)
			docs[0].Fields["MerchantAddress"] = document.Field{
				Type:    document.TypeAddress,
				Content: "1-1 Chiyoda, Tokyo 100-0001",
				ValueAddress: &document.Address{
					HouseNumber:  "1-1",
					City:         "Tokyo",
					CityDistrict: "Chiyoda",
					PostalCode:   "100-0001",
				},
			}
		})

		It("copies dates, times and phone numbers verbatim", func() {
			Expect(r.TransactionDate).To(Equal("2024-03-20"))
			Expect(r.TransactionTime).To(Equal("13:45:00"))
			Expect(r.PhoneNumber).To(Equal("+81312345678"))
		})

		It("renders the subtotal as its native text", func() {
			Expect(r.Subtotal).To(Equal("11"))
		})

		It("renders tax and tip as float strings", func() {
			Expect(r.Tax).To(Equal("1.5"))
			Expect(r.Tip).To(Equal("0.0"))
		})

		It("copies the structured address", func() {
			Expect(r.Address).To(Equal(Address{
				HouseNumber:  "1-1",
				City:         "Tokyo",
				CityDistrict: "Chiyoda",
				PostalCode:   "100-0001",
			}))
		})

		It("reports the address as its content", func() {
			Expect(events).To(ContainElement(HaveField("Value", "1-1 Chiyoda, Tokyo 100-0001")))
		})
	})

	When("the address only has flattened text", func() {
		BeforeEach(func() {
			docs[0].Fields["MerchantAddress"] = document.Field{Type: document.TypeAddress, Content: "東京都千代田区1-1"}
		})

		It("puts it in the street address", func() {
			Expect(r.Address).To(Equal(Address{StreetAddress: "東京都千代田区1-1"}))
		})
	})

	When("a field has no typed value", func() {
		BeforeEach(func() {
			docs[0].Fields["Tip"] = document.Field{Type: document.TypeCurrency, Content: "¥?"}
		})

		It("renders it empty", func() {
			Expect(r.Tip).To(BeEmpty())
		})
	})

	When("an item lacks some fields", func() {
		BeforeEach(func() {
			docs[0].Fields["Items"] = document.Field{
				Type: document.TypeArray,
				ValueArray: []document.Field{
					itemField(map[string]document.Field{"TotalPrice": currencyField(3)}),
				},
			}
		})

		It("leaves them empty", func() {
			Expect(r.ReceiptItems).To(Equal([]ReceiptItem{{TotalPrice: "3.0"}}))
		})
	})

	When("there are multiple documents", func() {
		BeforeEach(func() {
			second := document.Document{
				Fields: map[string]document.Field{
					"MerchantName": stringField("Beta Mart", 0.7),
					"Items": {
						Type: document.TypeArray,
						ValueArray: []document.Field{
							itemField(map[string]document.Field{"Description": stringField("Gadget", 0.9)}),
						},
					},
				},
			}
			docs = append(docs, second)
		})

		It("lets the later document win for scalars it has", func() {
			Expect(r.MerchantName).To(Equal("Beta Mart"))
		})

		It("keeps earlier scalars the later document lacks", func() {
			Expect(r.Total).To(Equal("12.5"))
		})

		It("accumulates the items of every document", func() {
			Expect(r.ReceiptItems).To(HaveLen(2))
			Expect(r.ReceiptItems[0].Description).To(Equal("Widget"))
			Expect(r.ReceiptItems[1].Description).To(Equal("Gadget"))
		})

		It("numbers the documents", func() {
			Expect(events[len(events)-1]).To(Equal(Event{Kind: DocumentFinished, Document: 2}))
		})
	})

	It("accepts a nil sink", func() {
		Expect(func() { Map(docs, nil) }).NotTo(Panic())
	})
})

var _ = Describe("MapEach", func() {
	It("returns one receipt per document", func() {
		second := document.Document{Fields: map[string]document.Field{
			"MerchantName": stringField("Beta Mart", 0.7),
		}}

		receipts := MapEach([]document.Document{sampleDocument(), second}, nil)

		Expect(receipts).To(HaveLen(2))
		Expect(receipts[0].MerchantName).To(Equal("Acme"))
		Expect(receipts[0].ReceiptItems).To(HaveLen(1))
		Expect(receipts[1].MerchantName).To(Equal("Beta Mart"))
		Expect(receipts[1].Total).To(BeEmpty())
		Expect(receipts[1].ReceiptItems).To(BeEmpty())
	})

	It("returns no receipts for no documents", func() {
		Expect(MapEach(nil, nil)).To(BeEmpty())
	})
})

var _ = Describe("Map with provider JSON", func() {
	It("maps a decoded analyze result", func() {
		var result document.AnalyzeResult
		Expect(json.Unmarshal([]byte(`{
			"apiVersion": "2023-07-31",
			"modelId": "prebuilt-receipt",
			"documents": [{
				"docType": "receipt.retailMeal",
				"confidence": 0.97,
				"fields": {
					"MerchantName": {"type": "string", "valueString": "Acme", "content": "Acme", "confidence": 0.95},
					"Total": {"type": "currency", "valueCurrency": {"amount": 12.5, "currencySymbol": "$"}, "content": "$12.50", "confidence": 0.9},
					"Items": {"type": "array", "valueArray": [
						{"type": "object", "valueObject": {
							"Description": {"type": "string", "valueString": "Widget", "confidence": 0.9},
							"Quantity": {"type": "number", "valueNumber": 2, "confidence": 0.9},
							"Price": {"type": "currency", "valueCurrency": {"amount": 5}, "confidence": 0.9},
							"TotalPrice": {"type": "currency", "valueCurrency": {"amount": 10}, "confidence": 0.9}
						}}
					]}
				}
			}]
		}`), &result)).To(Succeed())

		r := Map(result.Documents, nil)

		Expect(r.MerchantName).To(Equal("Acme"))
		Expect(r.Total).To(Equal("12.5"))
		Expect(r.ReceiptItems).To(Equal([]ReceiptItem{
			{Description: "Widget", Quantity: "2", Price: "5.0", TotalPrice: "10.0"},
		}))
	})
})
