package models

// Rejection reasons reported per row.
const (
	ReasonEmptySerial     = "empty_serial"
	ReasonDuplicateSerial = "duplicate_serial"
	ReasonUnresolvedModel = "unresolved_model"
)

// Row is one uploaded serial. ModelCode is optional when the caller supplies
// a default weapon model.
type Row struct {
	Serial    string `json:"serial"`
	ModelCode string `json:"model_code,omitempty"`
}

type Rejection struct {
	Row     int    `json:"row"`
	Serial  string `json:"serial,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// Result is partial by nature: accepted rows are loaded even when others
// fail.
type Result struct {
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}
