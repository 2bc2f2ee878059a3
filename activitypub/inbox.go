package activitypub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/socialdistance/socialdistance/domain"
)

const maxInboxBody = 1 << 20

// Inbound is an object POSTed to an inbox, decoded only as far as its type.
type Inbound struct {
	Type string
	Raw  json.RawMessage
}

// Kind is the lower-cased type used for dispatch.
func (in *Inbound) Kind() string {
	return strings.ToLower(in.Type)
}

// ParseInbound decodes the discriminating type of an inbox payload.
func ParseInbound(body []byte) (*Inbound, error) {
	if len(body) > maxInboxBody {
		return nil, &domain.ValidationError{Field: "body", Reason: "payload too large"}
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if strings.TrimSpace(head.Type) == "" {
		return nil, &domain.ValidationError{Field: "type", Reason: "this field is required"}
	}
	return &Inbound{Type: head.Type, Raw: json.RawMessage(body)}, nil
}

func (in *Inbound) decode(v any) error {
	if err := json.Unmarshal(in.Raw, v); err != nil {
		return &domain.ValidationError{Field: in.Kind(), Reason: err.Error()}
	}
	return nil
}

func (in *Inbound) Follow() (*FollowObject, error) {
	var f FollowObject
	if err := in.decode(&f); err != nil {
		return nil, err
	}
	if f.Actor == nil {
		return nil, &domain.ValidationError{Field: "actor", Reason: "this field is required"}
	}
	return &f, nil
}

func (in *Inbound) Like() (*LikeObject, error) {
	var l LikeObject
	if err := in.decode(&l); err != nil {
		return nil, err
	}
	if l.Author == nil {
		return nil, &domain.ValidationError{Field: "author", Reason: "this field is required"}
	}
	return &l, nil
}

func (in *Inbound) Comment() (*CommentObject, error) {
	var c CommentObject
	if err := in.decode(&c); err != nil {
		return nil, err
	}
	if c.Author == nil {
		return nil, &domain.ValidationError{Field: "author", Reason: "this field is required"}
	}
	return &c, nil
}

// Activity decodes Accept and Undo wrappers.
func (in *Inbound) Activity() (*ActivityObject, error) {
	var a ActivityObject
	if err := in.decode(&a); err != nil {
		return nil, err
	}
	if a.Object == nil || a.Object.Actor == nil || a.Object.Object == nil {
		return nil, &domain.ValidationError{Field: "object", Reason: "a follow object is required"}
	}
	return &a, nil
}
