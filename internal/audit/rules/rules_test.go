package rules

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"ecoledger/internal/audit/models"
	"ecoledger/internal/platform/config"
	"ecoledger/pkg/domain"
)

type RulesSuite struct {
	suite.Suite
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesSuite))
}

func movementWith(q string) *models.Movement {
	m := &models.Movement{ID: domain.NewMovementID(), ProducerID: "producer-1"}
	if q != "" {
		m.Quantity = domain.MustQuantity(q)
	}
	return m
}

func ptr(f float64) *float64 { return &f }

// =============================================================================
// Quantity
// =============================================================================
// Justification: bounds are inclusive; off-by-one here flips verdicts.

func (s *RulesSuite) TestQuantityRule() {
	rule := NewQuantityRule(config.QuantityRule{
		Min: domain.QuantityFromInt(1),
		Max: domain.QuantityFromInt(10000),
	})

	s.Run("min and max are inclusive", func() {
		for _, q := range []string{"1", "1.000", "10000", "9999.99"} {
			res, err := rule.Validate(movementWith(q))
			s.Require().NoError(err)
			s.True(res.Passed, q)
		}
	})

	s.Run("below min fails with quantity evidence", func() {
		res, err := rule.Validate(movementWith("0"))
		s.Require().NoError(err)
		s.False(res.Passed)
		s.Require().Len(res.Evidence, 1)
		s.Equal(models.EvidenceQuantity, res.Evidence[0].Kind)
		s.Contains(res.Evidence[0].Detail, "below the minimum")
	})

	s.Run("above max fails", func() {
		res, err := rule.Validate(movementWith("10000.001"))
		s.Require().NoError(err)
		s.False(res.Passed)
		s.Contains(res.Evidence[0].Detail, "above the maximum")
	})

	s.Run("missing quantity fails", func() {
		res, err := rule.Validate(movementWith(""))
		s.Require().NoError(err)
		s.False(res.Passed)
		s.Equal("quantity not provided", res.Evidence[0].Detail)
	})
}

// =============================================================================
// Location
// =============================================================================

func (s *RulesSuite) TestLocationRule() {
	s.Run("disabled rule always passes", func() {
		res, err := NewLocationRule(config.LocationRule{}).Validate(movementWith("1"))
		s.Require().NoError(err)
		s.True(res.Passed)
	})

	enabled := NewLocationRule(config.LocationRule{ValidateCoordinates: true})

	s.Run("both coordinates pass", func() {
		m := movementWith("1")
		m.Latitude, m.Longitude = ptr(-23.5), ptr(-46.6)
		res, err := enabled.Validate(m)
		s.Require().NoError(err)
		s.True(res.Passed)
	})

	s.Run("a single coordinate fails", func() {
		m := movementWith("1")
		m.Latitude = ptr(-23.5)
		res, err := enabled.Validate(m)
		s.Require().NoError(err)
		s.False(res.Passed)
		s.Equal(models.EvidenceLocation, res.Evidence[0].Kind)
	})
}

// =============================================================================
// Attachments
// =============================================================================

func (s *RulesSuite) TestAttachmentRule() {
	s.Run("not required passes without attachments", func() {
		res, err := NewAttachmentRule(config.AttachmentRule{MinCount: 5}).Validate(movementWith("1"))
		s.Require().NoError(err)
		s.True(res.Passed)
	})

	rule := NewAttachmentRule(config.AttachmentRule{
		Required:      true,
		MinCount:      2,
		RequiredTypes: []string{"invoice", "gta"},
	})

	s.Run("count and type failures accumulate", func() {
		m := movementWith("1")
		m.Attachments = []models.Attachment{{Type: "photo"}}
		res, err := rule.Validate(m)
		s.Require().NoError(err)
		s.False(res.Passed)
		s.Require().Len(res.Evidence, 2)
		s.Equal(models.EvidenceAttachmentCount, res.Evidence[0].Kind)
		s.Equal(models.EvidenceAttachmentTypes, res.Evidence[1].Kind)
		s.Equal("missing required attachment types: invoice, gta", res.Evidence[1].Detail)
	})

	s.Run("enough attachments with every type pass", func() {
		m := movementWith("1")
		m.Attachments = []models.Attachment{{Type: "gta"}, {Type: "invoice"}}
		res, err := rule.Validate(m)
		s.Require().NoError(err)
		s.True(res.Passed)
	})

	s.Run("type coverage fails independently of count", func() {
		m := movementWith("1")
		m.Attachments = []models.Attachment{{Type: "invoice"}, {Type: "invoice"}}
		res, err := rule.Validate(m)
		s.Require().NoError(err)
		s.Require().Len(res.Evidence, 1)
		s.Equal("missing required attachment types: gta", res.Evidence[0].Detail)
	})
}
