package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Logical field names. These are the only field identifiers business logic
// may use.
const (
	// ServiceRequests
	FieldName        = "name"
	FieldEmail       = "email"
	FieldPhone       = "phone"
	FieldVIN         = "vin"
	FieldBrand       = "brand"
	FieldPlateNumber = "plateNumber"
	FieldNotes       = "notes"
	FieldImageURLs   = "imageUrls"
	FieldSubmittedAt = "submittedAt"
	FieldSentMarker  = "sentMarker"

	// Garages
	FieldAddress     = "address"
	FieldWebsite     = "website"
	FieldSpecialties = "specialties"

	// GarageReplies
	FieldGarageEmail = "garageEmail"
	FieldSubject     = "subject"
	FieldBody        = "body"
	FieldQuoteAmount = "quoteAmount"
	FieldReceivedAt  = "receivedAt"
)

// ServiceRequest is the typed view of a ServiceRequests record. SentAt is
// zero until the customer summary has been dispatched.
type ServiceRequest struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	VIN         string
	Brand       string
	PlateNumber string
	Notes       string
	ImageURLs   []string
	SubmittedAt time.Time
	SentAt      time.Time
}

// Sent reports whether the customer summary for this request went out.
func (r ServiceRequest) Sent() bool { return !r.SentAt.IsZero() }

// Garage is the typed view of a Garages record. Identity is the normalized
// email address; garages are provisioned externally and read-only here.
type Garage struct {
	ID          string
	Name        string
	Email       string
	Address     string
	Phone       string
	Website     string
	Specialties string
}

// GarageReply is the typed view of a GarageReplies record. (VIN, normalized
// garage email) is unique; rows are created once and never mutated.
type GarageReply struct {
	ID          string
	VIN         string
	GarageEmail string
	Subject     string
	Body        string
	QuoteAmount string
	ReceivedAt  time.Time
}

// ServiceRequestFromRecord decodes a record into its typed view. Missing or
// malformed fields degrade to zero values; an unparseable submission date
// yields a zero SubmittedAt that callers treat as "recently submitted".
func ServiceRequestFromRecord(rec Record) ServiceRequest {
	return ServiceRequest{
		ID:          rec.ID,
		Name:        fieldString(rec, FieldName),
		Email:       fieldString(rec, FieldEmail),
		Phone:       fieldString(rec, FieldPhone),
		VIN:         fieldString(rec, FieldVIN),
		Brand:       fieldString(rec, FieldBrand),
		PlateNumber: fieldString(rec, FieldPlateNumber),
		Notes:       fieldString(rec, FieldNotes),
		ImageURLs:   fieldStrings(rec, FieldImageURLs),
		SubmittedAt: fieldTime(rec, FieldSubmittedAt),
		SentAt:      fieldTime(rec, FieldSentMarker),
	}
}

// Fields encodes the request for persistence. ImageURLs are stored as a
// JSON array string so both backends round-trip them identically.
func (r ServiceRequest) Fields() map[string]any {
	f := map[string]any{
		FieldName:        r.Name,
		FieldEmail:       r.Email,
		FieldPhone:       r.Phone,
		FieldVIN:         r.VIN,
		FieldBrand:       r.Brand,
		FieldPlateNumber: r.PlateNumber,
		FieldNotes:       r.Notes,
		FieldImageURLs:   encodeStrings(r.ImageURLs),
		FieldSubmittedAt: r.SubmittedAt.UTC().Format(time.RFC3339Nano),
		FieldSentMarker:  "",
	}
	if r.Sent() {
		f[FieldSentMarker] = r.SentAt.UTC().Format(time.RFC3339Nano)
	}
	return f
}

// GarageFromRecord decodes a record into its typed view.
func GarageFromRecord(rec Record) Garage {
	return Garage{
		ID:          rec.ID,
		Name:        fieldString(rec, FieldName),
		Email:       fieldString(rec, FieldEmail),
		Address:     fieldString(rec, FieldAddress),
		Phone:       fieldString(rec, FieldPhone),
		Website:     fieldString(rec, FieldWebsite),
		Specialties: fieldString(rec, FieldSpecialties),
	}
}

// Fields encodes the garage for persistence.
func (g Garage) Fields() map[string]any {
	return map[string]any{
		FieldName:        g.Name,
		FieldEmail:       g.Email,
		FieldAddress:     g.Address,
		FieldPhone:       g.Phone,
		FieldWebsite:     g.Website,
		FieldSpecialties: g.Specialties,
	}
}

// GarageReplyFromRecord decodes a record into its typed view.
func GarageReplyFromRecord(rec Record) GarageReply {
	return GarageReply{
		ID:          rec.ID,
		VIN:         fieldString(rec, FieldVIN),
		GarageEmail: fieldString(rec, FieldGarageEmail),
		Subject:     fieldString(rec, FieldSubject),
		Body:        fieldString(rec, FieldBody),
		QuoteAmount: fieldString(rec, FieldQuoteAmount),
		ReceivedAt:  fieldTime(rec, FieldReceivedAt),
	}
}

// Fields encodes the reply for persistence.
func (g GarageReply) Fields() map[string]any {
	return map[string]any{
		FieldVIN:         g.VIN,
		FieldGarageEmail: g.GarageEmail,
		FieldSubject:     g.Subject,
		FieldBody:        g.Body,
		FieldQuoteAmount: g.QuoteAmount,
		FieldReceivedAt:  g.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fieldString(rec Record, key string) string {
	switch v := rec.Fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// timeLayouts covers the formats the backends hand back. Baserow date
// fields arrive as ISO 8601 with or without sub-second precision.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func fieldTime(rec Record, key string) time.Time {
	s := fieldString(rec, key)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func fieldStrings(rec Record, key string) []string {
	switch v := rec.Fields[key].(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			out = append(out, fmt.Sprintf("%v", e))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
		return []string{v}
	default:
		return nil
	}
}

func encodeStrings(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return ""
	}
	return string(b)
}
