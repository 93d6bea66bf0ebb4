package domain

import "encoding/json"

// Text is a possibly-missing textual value. The zero value is the missing
// sentinel and is distinct from every extracted string, including "".
type Text struct {
	String string
	Valid  bool
}

// Missing is the sentinel for an absent field value.
var Missing = Text{}

// Present wraps s as a valid value.
func Present(s string) Text {
	return Text{String: s, Valid: true}
}

// OrElse returns the value, or fallback when missing.
func (t Text) OrElse(fallback string) string {
	if !t.Valid {
		return fallback
	}
	return t.String
}

// MarshalJSON renders missing values as null.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

// UnmarshalJSON accepts a JSON string or null.
func (t *Text) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Missing
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = Present(s)
	return nil
}
