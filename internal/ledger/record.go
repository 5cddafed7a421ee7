package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Record is one open position. Quantity is not stored: the exchange balance is authoritative.
type Record struct {
	Price     float64
	Stop      *float64
	TP        *float64
	Timestamp time.Time

	// Legacy marks an entry persisted as a bare entry price by older versions.
	Legacy bool

	// raw holds an entry that could not be read. It is written back unchanged.
	raw json.RawMessage
}

// Unreadable reports whether the entry was kept verbatim because it could not be decoded.
func (r Record) Unreadable() bool { return len(r.raw) > 0 }

// Positions maps a canonical symbol key to its record.
type Positions map[string]Record

// Keys returns the symbol keys in sorted order.
func (p Positions) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns a pointer to v, for the optional Stop and TP fields.
func Float(v float64) *float64 { return &v }

type recordJSON struct {
	Price     float64         `json:"price"`
	Stop      *float64        `json:"stop,omitempty"`
	TP        *float64        `json:"tp,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Unreadable() {
		return r.raw, nil
	}
	if r.Legacy && r.Stop == nil && r.TP == nil {
		return json.Marshal(r.Price)
	}
	ts, err := json.Marshal(r.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	return json.Marshal(recordJSON{Price: r.Price, Stop: r.Stop, TP: r.TP, Timestamp: ts})
}

// UnmarshalJSON accepts either a bare number (legacy entry price) or the full object. The timestamp may
// be RFC 3339, "2006-01-02 15:04:05" (UTC) or unix seconds.
func (r *Record) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var price float64
		if err := json.Unmarshal(b, &price); err != nil {
			return fmt.Errorf("legacy record: %w", err)
		}
		*r = Record{Price: price, Legacy: true}
		return r.check()
	}
	var raw recordJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Record{Price: raw.Price, Stop: raw.Stop, TP: raw.TP}
	if ts := bytes.TrimSpace(raw.Timestamp); len(ts) > 0 && !bytes.Equal(ts, []byte("null")) {
		if ts[0] == '"' {
			var s string
			if err := json.Unmarshal(ts, &s); err != nil {
				return err
			}
			t, err := parseTime(s)
			if err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			out.Timestamp = t
		} else {
			var secs float64
			if err := json.Unmarshal(ts, &secs); err != nil {
				return fmt.Errorf("timestamp: %w", err)
			}
			whole, frac := math.Modf(secs)
			out.Timestamp = time.Unix(int64(whole), int64(frac*1e9)).UTC()
		}
	}
	*r = out
	return r.check()
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		t, perr := time.Parse(layout, s)
		if perr == nil {
			return t.UTC(), nil
		}
		err = perr
	}
	return time.Time{}, err
}

func (r Record) check() error {
	if !(r.Price > 0) || math.IsInf(r.Price, 0) {
		return fmt.Errorf("invalid entry price %v", r.Price)
	}
	return nil
}

// Decode parses a persisted document. A document that is not a JSON object is an error. Entries that
// cannot be read are kept verbatim under their original key (see Record.Unreadable) so a later save
// writes them back; their keys are returned in skipped.
func Decode(b []byte) (p Positions, skipped []string, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return Positions{}, nil, fmt.Errorf("ledger document: %w", err)
	}
	p = make(Positions, len(raw))
	for k, v := range raw {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			skipped = append(skipped, k)
			p[k] = Record{raw: append(json.RawMessage(nil), v...)}
			continue
		}
		p[k] = rec
	}
	sort.Strings(skipped)
	return p, skipped, nil
}

// Encode renders the document with sorted keys.
func Encode(p Positions) ([]byte, error) {
	if p == nil {
		p = Positions{}
	}
	return json.MarshalIndent(p, "", "  ")
}

// digest names the backup of an unparseable document.
func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}
