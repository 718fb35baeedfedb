package transport

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}

// NewError returns an error envelope. meta carries optional detail such as health status.
func NewError(code string, message string, meta interface{}) Envelope {
	return Envelope{
		Code:  code,
		Error: message,
		Meta:  meta,
	}
}

// Marshal encodes the envelope, falling back to a bare failure body.
func (e Envelope) Marshal() []byte {
	out, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"success":false,"error":"failed to encode response","code":"INTERNAL"}`)
	}
	return out
}

// String returns the JSON representation for logging purposes.
func (e Envelope) String() string {
	return string(e.Marshal())
}
