package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts any JSON value. Strings and numbers keep their text;
// null, booleans, objects and arrays decode to the empty value.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s, _ := flexValue(data)
	*f = FlexString(s)
	return nil
}

// flexValue returns the text of a JSON string or number. ok is false for
// booleans, objects and arrays; null counts as absent, not invalid.
func flexValue(data []byte) (s string, ok bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", true
	}
	switch c := data[0]; {
	case c == '"':
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Present reports whether the client supplied a non-blank value.
func (f FlexString) Present() bool {
	return f.String() != ""
}

type EstimateRequest struct {
	URL       string     `json:"url"`
	Zipcode   FlexString `json:"zipcode"`
	Sqft      FlexString `json:"sqft"`
	Bedrooms  FlexString `json:"bedrooms"`
	Bathrooms FlexString `json:"bathrooms"`
	YearBuilt FlexString `json:"yearBuilt"`
	DealID    FlexString `json:"dealId"`

	// Rejected names the fields whose JSON type could not carry a value.
	// They are left empty so the request still gets an estimate.
	Rejected []string `json:"-"`
}

// UnmarshalJSON decodes field by field so one badly typed value downgrades
// to a default instead of failing the whole request.
func (r *EstimateRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL       json.RawMessage `json:"url"`
		Zipcode   json.RawMessage `json:"zipcode"`
		Sqft      json.RawMessage `json:"sqft"`
		Bedrooms  json.RawMessage `json:"bedrooms"`
		Bathrooms json.RawMessage `json:"bathrooms"`
		YearBuilt json.RawMessage `json:"yearBuilt"`
		DealID    json.RawMessage `json:"dealId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out EstimateRequest
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  *FlexString
	}{
		{"zipcode", raw.Zipcode, &out.Zipcode},
		{"sqft", raw.Sqft, &out.Sqft},
		{"bedrooms", raw.Bedrooms, &out.Bedrooms},
		{"bathrooms", raw.Bathrooms, &out.Bathrooms},
		{"yearBuilt", raw.YearBuilt, &out.YearBuilt},
		{"dealId", raw.DealID, &out.DealID},
	}

	// a bare number is not a URL
	if u, ok := flexValue(raw.URL); ok && (len(raw.URL) == 0 || raw.URL[0] == '"' || u == "") {
		out.URL = u
	} else {
		out.Rejected = append(out.Rejected, "url")
	}
	for _, f := range fields {
		v, ok := flexValue(f.raw)
		if !ok {
			out.Rejected = append(out.Rejected, f.name)
		}
		*f.dst = FlexString(v)
	}

	*r = out
	return nil
}

// IsManual reports whether the request carries enough attributes to skip extraction.
func (r EstimateRequest) IsManual() bool {
	return r.Sqft.Present() && r.Bedrooms.Present() && r.Bathrooms.Present()
}
