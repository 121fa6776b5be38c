package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Uint64 decodes the ledger's u64 values, which arrive as decimal strings
// or as JSON numbers.
type Uint64 uint64

func (u *Uint64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse u64 %q: %w", s, err)
		}
		*u = Uint64(v)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*u = Uint64(n)
	return nil
}

func (u Uint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

type ObjectOptions struct {
	ShowType    bool `json:"showType,omitempty"`
	ShowOwner   bool `json:"showOwner,omitempty"`
	ShowContent bool `json:"showContent,omitempty"`
}

type TxOptions struct {
	ShowEffects bool `json:"showEffects,omitempty"`
	ShowEvents  bool `json:"showEvents,omitempty"`
	ShowInput   bool `json:"showInput,omitempty"`
}

type ObjectResponse struct {
	Data  *ObjectData     `json:"data"`
	Error json.RawMessage `json:"error,omitempty"`
}

type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  Uint64       `json:"version"`
	Digest   string       `json:"digest"`
	Type     string       `json:"type"`
	Owner    *Owner       `json:"owner"`
	Content  *MoveContent `json:"content"`
}

// Fields returns the Move struct fields, or an empty map.
func (o *ObjectData) Fields() Fields {
	if o == nil || o.Content == nil || o.Content.Fields == nil {
		return Fields{}
	}
	return o.Content.Fields
}

// Ref is the owned-object reference of o.
func (o *ObjectData) Ref() ObjectRef {
	return ObjectRef{ObjectID: o.ObjectID, Version: uint64(o.Version), Digest: o.Digest}
}

type MoveContent struct {
	DataType string `json:"dataType"`
	Type     string `json:"type"`
	Fields   Fields `json:"fields"`
}

// Owner is one of {"AddressOwner": addr}, {"ObjectOwner": id},
// {"Shared": {"initial_shared_version": n}} or "Immutable".
type Owner struct {
	AddressOwner  string
	ObjectOwner   string
	SharedVersion uint64
	Shared        bool
	Immutable     bool
}

func (o *Owner) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.Immutable = s == "Immutable"
		return nil
	}
	var raw struct {
		AddressOwner string `json:"AddressOwner"`
		ObjectOwner  string `json:"ObjectOwner"`
		Shared       *struct {
			InitialSharedVersion Uint64 `json:"initial_shared_version"`
		} `json:"Shared"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	o.AddressOwner = raw.AddressOwner
	o.ObjectOwner = raw.ObjectOwner
	if raw.Shared != nil {
		o.Shared = true
		o.SharedVersion = uint64(raw.Shared.InitialSharedVersion)
	}
	return nil
}

type ObjectRef struct {
	ObjectID string
	Version  uint64
	Digest   string
}

type ObjectsPage struct {
	Data        []ObjectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

type DynamicFieldInfo struct {
	ObjectID   string          `json:"objectId"`
	ObjectType string          `json:"objectType"`
	Name       json.RawMessage `json:"name"`
}

type DynamicFieldsPage struct {
	Data        []DynamicFieldInfo `json:"data"`
	NextCursor  *string            `json:"nextCursor"`
	HasNextPage bool               `json:"hasNextPage"`
}

type Coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      Uint64 `json:"version"`
	Digest       string `json:"digest"`
	Balance      Uint64 `json:"balance"`
}

func (c Coin) Ref() ObjectRef {
	return ObjectRef{ObjectID: c.CoinObjectID, Version: uint64(c.Version), Digest: c.Digest}
}

type CoinsPage struct {
	Data        []Coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type Effects struct {
	Status ExecutionStatus `json:"status"`
}

type Event struct {
	ID struct {
		TxDigest string `json:"txDigest"`
		EventSeq string `json:"eventSeq"`
	} `json:"id"`
	PackageID  string         `json:"packageId"`
	Module     string         `json:"transactionModule"`
	Sender     string         `json:"sender"`
	Type       string         `json:"type"`
	ParsedJSON map[string]any `json:"parsedJson"`
}

type TransactionResponse struct {
	Digest  string   `json:"digest"`
	Effects *Effects `json:"effects"`
	Events  []Event  `json:"events"`
}

// Succeeded reports whether effects are present and successful.
func (r *TransactionResponse) Succeeded() bool {
	return r != nil && r.Effects != nil && r.Effects.Status.Status == "success"
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
