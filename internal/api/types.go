package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/andreas-glaser/ha-dessmonitor/internal/model"
)

// envelope is the outer shape of every API payload.
type envelope struct {
	Err  int             `json:"err"`
	Desc string          `json:"desc"`
	Dat  json.RawMessage `json:"dat"`
}

// flexInt tolerates the API returning numbers either bare or quoted,
// which varies by collector firmware.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("numeric field %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type rawCollector struct {
	PN       string `json:"pn"`
	Alias    string `json:"alias"`
	Firmware string `json:"fireware"`
	PID      int64  `json:"pid"`
}

type rawDevice struct {
	SN      string  `json:"sn"`
	Devcode flexInt `json:"devcode"`
	Devaddr flexInt `json:"devaddr"`
	Alias   string  `json:"alias"`
}

// SummaryDevice is the device header attached to plant-level summary rows.
type SummaryDevice struct {
	Alias  string `json:"alias"`
	SN     string `json:"sn"`
	Status int    `json:"status"`
}

// SummaryEntry is the synthesized plant-summary result for one device SN.
type SummaryEntry struct {
	Data   []model.DataPoint `json:"data"`
	Device SummaryDevice     `json:"device"`
}

// ControlOption is one selectable value of an enumerated control field.
type ControlOption struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ControlField describes a writable device setting. Options is nil for
// free-value fields.
type ControlField struct {
	ID      string          `json:"id"`
	Options []ControlOption `json:"options,omitempty"`
}

// HasOptions reports whether the field exposes an enumerated option list.
func (f ControlField) HasOptions() bool { return len(f.Options) > 0 }

// Parameter is one current device parameter value.
type Parameter struct {
	Value any    `json:"value"`
	Unit  string `json:"unit"`
	ID    string `json:"id"`
}

// StoredToken is the persisted session triple. Expiry is absolute unix
// seconds; a record is only reusable when all three fields are present.
type StoredToken struct {
	Token  string
	Secret string
	Expiry int64
}

// TokenStore persists the session triple between runs. LoadToken returns
// (nil, nil) when nothing is stored.
type TokenStore interface {
	LoadToken(ctx context.Context) (*StoredToken, error)
	SaveToken(ctx context.Context, t *StoredToken) error
	ClearToken(ctx context.Context) error
}
