package jsonrpc

import "encoding/json"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // accepts string | number | null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func NewRequest(id int, method string, params any) (Request, error) {
	req := Request{
		JSONRPC: "2.0",
		Method:  method,
	}

	buf, err := json.Marshal(id)
	if err != nil {
		return req, err
	}
	req.ID = buf

	if params != nil {
		if buf, err = json.Marshal(params); err != nil {
			return req, err
		}
		req.Params = buf
	}

	return req, nil
}
