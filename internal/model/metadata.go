package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	CommissionPercentage CommissionType = "PERCENTAGE"
	CommissionFlat       CommissionType = "FLAT"
)

// ItemCommission is the commission configured on the purchased item, if any.
type ItemCommission struct {
	Type  CommissionType  `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// TransactionMetadata is one of MembershipMetadata, ProductMetadata or CourseMetadata.
type TransactionMetadata interface {
	Kind() TransactionType
	Commission() *ItemCommission
}

type MembershipMetadata struct {
	MembershipID   string          `json:"membership_id" validate:"required"`
	MembershipName string          `json:"membership_name"`
	DurationMonths int             `json:"duration_months" validate:"gte=0"`
	ItemCommission *ItemCommission `json:"item_commission,omitempty"`
}

func (MembershipMetadata) Kind() TransactionType       { return TransactionMembership }
func (m MembershipMetadata) Commission() *ItemCommission { return m.ItemCommission }

type ProductMetadata struct {
	ProductID      string          `json:"product_id" validate:"required"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity" validate:"gte=1"`
	ItemCommission *ItemCommission `json:"item_commission,omitempty"`
}

func (ProductMetadata) Kind() TransactionType       { return TransactionProduct }
func (m ProductMetadata) Commission() *ItemCommission { return m.ItemCommission }

type CourseMetadata struct {
	CourseID       string          `json:"course_id" validate:"required"`
	CourseTitle    string          `json:"course_title"`
	ItemCommission *ItemCommission `json:"item_commission,omitempty"`
}

func (CourseMetadata) Kind() TransactionType       { return TransactionCourse }
func (m CourseMetadata) Commission() *ItemCommission { return m.ItemCommission }

type metadataEnvelope struct {
	Kind TransactionType `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeMetadata wraps the metadata with its kind so it can be decoded back into the right variant.
func EncodeMetadata(m TransactionMetadata) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

func DecodeMetadata(raw []byte) (TransactionMetadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	switch env.Kind {
	case TransactionMembership:
		var m MembershipMetadata
		err := json.Unmarshal(env.Data, &m)
		return m, err
	case TransactionProduct:
		var m ProductMetadata
		err := json.Unmarshal(env.Data, &m)
		return m, err
	case TransactionCourse:
		var m CourseMetadata
		err := json.Unmarshal(env.Data, &m)
		return m, err
	default:
		return nil, fmt.Errorf("unknown metadata kind %q", env.Kind)
	}
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	meta, err := EncodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: plain(t), Metadata: meta})
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Metadata json.RawMessage `json:"metadata"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	meta, err := DecodeMetadata(aux.Metadata)
	if err != nil {
		return err
	}
	t.Metadata = meta
	return nil
}
