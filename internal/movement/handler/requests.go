package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecoledger/internal/movement/models"
	"ecoledger/pkg/domain"
	dErrors "ecoledger/pkg/domain-errors"
)

// CreateRequest is the body of POST /movements.
type CreateRequest struct {
	ProducerID  string              `json:"producerId"`
	CommodityID string              `json:"commodityId"`
	Type        string              `json:"type"`
	Quantity    domain.Quantity     `json:"quantity"`
	Unit        string              `json:"unit"`
	Timestamp   *time.Time          `json:"timestamp"`
	Location    *LocationRequest    `json:"location,omitempty"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`

	parsed models.NewMovement
}

type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type AttachmentRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// Validate collects every offending field before failing.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var bad []string
	producer, err := domain.ParseProducerID(r.ProducerID)
	if err != nil {
		bad = append(bad, "producerId")
	}
	commodity, err := domain.ParseCommodityID(r.CommodityID)
	if err != nil {
		bad = append(bad, "commodityId")
	}
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		bad = append(bad, "type")
	}
	if !r.Quantity.Present() || r.Quantity.Sign() <= 0 {
		bad = append(bad, "quantity")
	}
	r.Unit = strings.TrimSpace(r.Unit)
	if r.Unit == "" {
		bad = append(bad, "unit")
	}
	if r.Timestamp == nil || r.Timestamp.IsZero() {
		bad = append(bad, "timestamp")
	}

	var loc *models.Location
	if r.Location != nil {
		switch {
		case r.Location.Lat == nil && r.Location.Lon == nil:
		case r.Location.Lat == nil || r.Location.Lon == nil,
			*r.Location.Lat < -90 || *r.Location.Lat > 90,
			*r.Location.Lon < -180 || *r.Location.Lon > 180:
			bad = append(bad, "location")
		default:
			loc = &models.Location{Lat: *r.Location.Lat, Lon: *r.Location.Lon}
		}
	}

	attachments := make([]models.Attachment, 0, len(r.Attachments))
	for i, a := range r.Attachments {
		prefix := "attachments[" + strconv.Itoa(i) + "]."
		if strings.TrimSpace(a.Type) == "" {
			bad = append(bad, prefix+"type")
		}
		if !isHTTPURL(a.URL) {
			bad = append(bad, prefix+"url")
		}
		if strings.TrimSpace(a.Hash) == "" {
			bad = append(bad, prefix+"hash")
		}
		attachments = append(attachments, models.Attachment{Type: strings.TrimSpace(a.Type), URL: a.URL, Hash: a.Hash})
	}

	if len(bad) > 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid fields: "+strings.Join(bad, ", "))
	}

	r.parsed = models.NewMovement{
		ProducerID:  producer,
		CommodityID: commodity,
		Type:        r.Type,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		OccurredAt:  r.Timestamp.UTC(),
		Location:    loc,
		Attachments: attachments,
	}
	return nil
}

// Movement returns the parsed movement. Only valid after Validate.
func (r *CreateRequest) Movement() models.NewMovement { return r.parsed }

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// parseListFilter reads page, size, commodityId, fromDate and toDate.
func parseListFilter(producerID domain.ProducerID, q url.Values) (models.ListFilter, error) {
	f := models.ListFilter{ProducerID: producerID, Page: 1, Size: models.DefaultPageSize}
	var bad []string

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad = append(bad, "page")
		}
		f.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			bad = append(bad, "size")
		}
		f.Size = n
	}
	if v := strings.TrimSpace(q.Get("commodityId")); v != "" {
		f.CommodityID = domain.CommodityID(v)
	}
	if v := q.Get("fromDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			bad = append(bad, "fromDate")
		}
		f.From = &t
	}
	if v := q.Get("toDate"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			bad = append(bad, "toDate")
		}
		f.To = &t
	}
	if len(bad) > 0 {
		return models.ListFilter{}, dErrors.New(dErrors.CodeValidation, "invalid query parameters: "+strings.Join(bad, ", "))
	}
	return f, nil
}
