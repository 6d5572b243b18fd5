package reeleezee

import "encoding/json"

// Document and communication codes used by the sales invoice endpoints.
const (
	communicationTypeEmail = 10
	addressTypeInvoice     = 2

	documentTypeSalesInvoice = 10
	documentOriginAPI        = 2
	documentTypeDefault      = 1
)

const dateLayout = "2006-01-02"

type reference struct {
	ID string `json:"id"`
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}

type customerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"Name"`
	EMail string `json:"EMail"`
}

type invoiceDTO struct {
	ID            string `json:"id"`
	Header        string `json:"Header"`
	InvoiceNumber string `json:"InvoiceNumber,omitempty"`
}

type communicationChannel struct {
	CommunicationType int    `json:"CommunicationType"`
	FormattedValue    string `json:"FormattedValue"`
}

type createCustomerRequest struct {
	Name                     string                 `json:"Name"`
	SearchName               string                 `json:"SearchName"`
	CommunicationChannelList []communicationChannel `json:"CommunicationChannelList"`
	EntityType               reference              `json:"EntityType"`
}

type createAddressRequest struct {
	Street          string    `json:"Street"`
	Number          string    `json:"Number"`
	NumberExtension string    `json:"NumberExtension"`
	City            string    `json:"City"`
	Postcode        string    `json:"Postcode"`
	Country         reference `json:"Country"`
	Type            int       `json:"Type"`
	IsPostal        bool      `json:"IsPostal"`
}

type createInvoiceRequest struct {
	Entity       reference `json:"Entity"`
	DocumentType int       `json:"DocumentType"`
	Origin       int       `json:"Origin"`
	Type         int       `json:"Type"`
	InvoiceDate  string    `json:"InvoiceDate"`
	DueDate      string    `json:"DueDate"`
	Header       string    `json:"Header"`
}

type placeholderLine struct {
	Sequence int `json:"Sequence"`
	Quantity int `json:"Quantity"`
}

type allocateLinesRequest struct {
	ID               string            `json:"id"`
	DocumentType     int               `json:"DocumentType"`
	Type             int               `json:"Type"`
	Origin           int               `json:"Origin"`
	DocumentLineList []placeholderLine `json:"DocumentLineList"`
}

// documentLine is a populated line. Price is a bare JSON number.
type documentLine struct {
	ID                      string      `json:"id"`
	Sequence                int         `json:"Sequence"`
	Quantity                int         `json:"Quantity"`
	Price                   json.Number `json:"Price"`
	Description             string      `json:"Description"`
	DocumentCategoryAccount reference   `json:"DocumentCategoryAccount"`
	TaxRate                 reference   `json:"TaxRate"`
}

type updateLinesRequest struct {
	ID               string         `json:"id"`
	DocumentLineList []documentLine `json:"DocumentLineList"`
}

type documentLineRef struct {
	ID       string `json:"id"`
	Sequence int    `json:"Sequence"`
}

type invoiceWithLines struct {
	ID               string            `json:"id"`
	DocumentLineList []documentLineRef `json:"DocumentLineList"`
}

type actionRequest struct {
	ID   string `json:"id"`
	Type int    `json:"Type"`
}
