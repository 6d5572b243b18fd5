package integration

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// JSON:API resource model
// ---------------------------------------------------------------------------

// Resource types used by the rental platform.
const (
	ResourceTypeOrders     = "orders"
	ResourceTypeCustomers  = "customers"
	ResourceTypeProperties = "properties"
	ResourceTypeLines      = "lines"
	ResourceTypePayments   = "payments"
)

// ResourceRef identifies a resource by type and id.
type ResourceRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Relationship holds the linkage of one relationship. JSON:API allows the
// data member to be a single reference, a list of references or null; Many
// records which form was used.
type Relationship struct {
	Refs []ResourceRef
	Many bool
}

// UnmarshalJSON decodes the relationship's data member in any of its forms.
func (r *Relationship) UnmarshalJSON(data []byte) error {
	var raw struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Refs = nil
	r.Many = false

	body := bytes.TrimSpace(raw.Data)
	switch {
	case len(body) == 0 || bytes.Equal(body, []byte("null")):
		return nil
	case body[0] == '[':
		r.Many = true
		return json.Unmarshal(body, &r.Refs)
	default:
		var ref ResourceRef
		if err := json.Unmarshal(body, &ref); err != nil {
			return err
		}
		r.Refs = []ResourceRef{ref}
		return nil
	}
}

// MarshalJSON encodes the relationship back into its original form.
func (r Relationship) MarshalJSON() ([]byte, error) {
	switch {
	case r.Many:
		refs := r.Refs
		if refs == nil {
			refs = []ResourceRef{}
		}
		return json.Marshal(map[string]any{"data": refs})
	case len(r.Refs) == 0:
		return []byte(`{"data":null}`), nil
	default:
		return json.Marshal(map[string]any{"data": r.Refs[0]})
	}
}

// One returns the first reference, if any.
func (r Relationship) One() (ResourceRef, bool) {
	if len(r.Refs) == 0 {
		return ResourceRef{}, false
	}
	return r.Refs[0], true
}

// Attributes holds a resource's attributes. Numbers are kept as json.Number.
type Attributes map[string]any

// UnmarshalJSON decodes attributes preserving numeric precision.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	m := map[string]any{}
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*a = m
	return nil
}

// Has reports whether key is present with a non-null value.
func (a Attributes) Has(key string) bool {
	v, ok := a[key]
	return ok && v != nil
}

// String returns the attribute rendered as a string. Numbers are formatted
// without exponent. ok is false when the attribute is absent or null.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// StringOr returns the attribute as a string or def when absent.
func (a Attributes) StringOr(key, def string) string {
	if s, ok := a.String(key); ok {
		return s
	}
	return def
}

// Int64 returns an integral attribute. Numeric strings are accepted.
func (a Attributes) Int64(key string) (int64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Decimal returns a numeric attribute without loss of precision. Numeric
// strings are accepted.
func (a Attributes) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	default:
		return decimal.Zero, false
	}
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Resource is a single JSON:API resource object.
type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    Attributes              `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Ref returns the resource's own reference.
func (r Resource) Ref() ResourceRef {
	return ResourceRef{ID: r.ID, Type: r.Type}
}

// Related returns the references of the named relationship.
func (r Resource) Related(name string) []ResourceRef {
	rel, ok := r.Relationships[name]
	if !ok {
		return nil
	}
	return rel.Refs
}

// RelatedOne returns the first reference of the named relationship.
func (r Resource) RelatedOne(name string) (ResourceRef, bool) {
	rel, ok := r.Relationships[name]
	if !ok {
		return ResourceRef{}, false
	}
	return rel.One()
}

// Document is a JSON:API top-level document. Data is always a list; a
// document whose primary data is a single resource decodes into a list of one.
type Document struct {
	Data     []Resource `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

// UnmarshalJSON accepts primary data as an object, a list or null.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Data     json.RawMessage `json:"data"`
		Included []Resource      `json:"included"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Included = raw.Included
	d.Data = nil

	body := bytes.TrimSpace(raw.Data)
	switch {
	case len(body) == 0 || bytes.Equal(body, []byte("null")):
		return nil
	case body[0] == '[':
		return json.Unmarshal(body, &d.Data)
	default:
		var res Resource
		if err := json.Unmarshal(body, &res); err != nil {
			return err
		}
		d.Data = []Resource{res}
		return nil
	}
}

// Primary returns the first primary resource.
func (d *Document) Primary() (Resource, bool) {
	if d == nil || len(d.Data) == 0 {
		return Resource{}, false
	}
	return d.Data[0], true
}

// Pool indexes the document's included resources.
func (d *Document) Pool() *ResourcePool {
	if d == nil {
		return NewResourcePool(nil)
	}
	return NewResourcePool(d.Included)
}
