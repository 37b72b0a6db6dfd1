// Package discrepancy checks confirmed mappings against the values the
// vendor specification allows, and flags rows whose mapping rule leaves
// some of those values unhandled.
package discrepancy

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/decode"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/logging"
)

// WrapperKeys are the members a flag reply may nest its list under.
var WrapperKeys = []string{"flags", "results", "items", "data"}

// Report is the outcome of one flagging run.
type Report struct {
	Flags map[int]edi.Flag
	// Sent is the number of rows sent to the backend.
	Sent int
	// Failed is set when the backend call or decode failed.
	Failed bool
}

// Flagger issues one batched request per run.
type Flagger struct {
	backend backend.Completer
	logger  *zerolog.Logger
}

// Option configures a Flagger.
type Option func(*Flagger) error

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(f *Flagger) error {
		f.logger = l
		return nil
	}
}

// New creates a Flagger.
func New(b backend.Completer, opts ...Option) (*Flagger, error) {
	if b == nil {
		return nil, errors.NewValidationError("backend", nil, "completer is required")
	}
	f := &Flagger{backend: b}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Flag checks candidates and returns the flags keyed by grid row. Backend
// and decode failures degrade to no flags. The error is non-nil only when
// ctx was canceled.
func (f *Flagger) Flag(ctx context.Context, candidates []edi.FlagCandidate) (*Report, error) {
	logger := f.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	report := &Report{Flags: make(map[int]edi.Flag)}
	pending := make(map[int]edi.FlagCandidate, len(candidates))
	var items []requestItem
	for _, c := range candidates {
		if len(c.Values) == 0 {
			continue
		}
		pending[c.Row] = c
		items = append(items, requestItem{
			Row:         c.Row,
			WireElement: c.WireElement,
			MappingRule: c.MappingRule,
			Values:      c.Values,
		})
	}
	report.Sent = len(items)
	if len(items) == 0 {
		return report, nil
	}

	logger.Info().
		Int("rows", len(items)).
		Msg("Checking mapping rules against allowed values")

	reply, err := f.backend.Complete(ctx, BuildPrompt(items), SystemPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return report, errors.Join(errors.ErrCanceled, ctx.Err())
		}
		report.Failed = true
		logger.Warn().Err(err).Msg("Value flagging failed, continuing without flags")
		return report, nil
	}

	res, err := decode.Extract(reply, WrapperKeys...)
	if err != nil {
		report.Failed = true
		logger.Warn().
			Err(err).
			Str("sample", errors.Truncate(reply, constants.SampleLength)).
			Msg("Flag reply could not be decoded")
		return report, nil
	}

	for _, item := range res.Items {
		var r flagReply
		if err := item.Unmarshal(&r); err != nil {
			continue
		}
		row := int(r.Row)
		if row == 0 && item.Key != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(item.Key)); err == nil {
				row = n
			}
		}
		c, ok := pending[row]
		if !ok || !bool(r.Flagged) {
			continue
		}
		reason := strings.TrimSpace(r.Reason)
		if reason == "" {
			continue
		}
		report.Flags[row] = edi.Flag{
			Row:             row,
			Column:          edi.ColMappingRule,
			WireElement:     c.WireElement,
			UncoveredValues: restrict(r.Uncovered, c),
			Reason:          reason,
		}
	}

	logger.Info().Int("flags", len(report.Flags)).Msg("Value flagging complete")
	return report, nil
}

// restrict keeps the reported values that belong to the row, in the order of
// the row's values. When none remain the locally computed gaps are used.
func restrict(reported []string, c edi.FlagCandidate) []string {
	want := make(map[string]struct{}, len(reported))
	for _, v := range reported {
		want[edi.FoldText(strings.TrimSpace(v))] = struct{}{}
	}
	var out []string
	for _, v := range c.Values {
		if _, ok := want[edi.FoldText(v)]; ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return Uncovered(c.MappingRule, c.Values)
	}
	return out
}

type flagReply struct {
	Row       flexInt     `json:"row_idx"`
	Flagged   flexBool    `json:"flagged"`
	Uncovered flexStrings `json:"uncovered_values"`
	Reason    string      `json:"reason"`
}

// flexInt accepts 3 or "3".
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

// flexBool accepts true or "true"/"yes".
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "true", "yes", "y", "1":
		*v = true
	default:
		*v = false
	}
	return nil
}

// flexStrings accepts a list or a single comma-separated string.
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(b []byte) error {
	var list []any
	if err := json.Unmarshal(b, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			switch x := v.(type) {
			case string:
				out = append(out, x)
			case float64:
				out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
			}
		}
		*s = out
		return nil
	}
	var one string
	if err := json.Unmarshal(b, &one); err != nil {
		*s = nil
		return nil
	}
	*s = strings.Split(one, ",")
	return nil
}
