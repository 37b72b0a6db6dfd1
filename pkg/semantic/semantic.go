// Package semantic proposes wire elements for ERP fields that have no
// standard mapping, by asking the text-generation backend to match field
// descriptions against the element catalogue of the vendor specification.
package semantic

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/edimap/pkg/backend"
	"github.com/agentstation/edimap/pkg/constants"
	"github.com/agentstation/edimap/pkg/decode"
	"github.com/agentstation/edimap/pkg/edi"
	"github.com/agentstation/edimap/pkg/errors"
	"github.com/agentstation/edimap/pkg/fanout"
	"github.com/agentstation/edimap/pkg/logging"
)

// WrapperKeys are the members a match reply may nest its list under.
var WrapperKeys = []string{"matches", "results", "data", "mappings"}

// Report is the outcome of matching a set of fields. Candidates holds an
// entry for every requested field; the value is nil when no acceptable
// match was proposed.
type Report struct {
	Candidates    map[edi.ErpKey]*edi.MatchCandidate
	Batches       int
	FailedBatches []int
	// Rejected counts proposals naming an element outside the catalogue.
	Rejected int
}

// Matched returns the number of non-nil candidates.
func (r *Report) Matched() int {
	n := 0
	for _, c := range r.Candidates {
		if c != nil {
			n++
		}
	}
	return n
}

// Matcher batches match requests against a backend.
type Matcher struct {
	backend   backend.Completer
	batchSize int
	workers   int
	logger    *zerolog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher) error

// WithBatchSize sets the number of fields per request.
func WithBatchSize(n int) Option {
	return func(m *Matcher) error {
		if n < 1 {
			return errors.NewValidationError("batch_size", n, "must be at least 1")
		}
		m.batchSize = n
		return nil
	}
}

// WithWorkers caps the number of concurrent requests.
func WithWorkers(n int) Option {
	return func(m *Matcher) error {
		if n < 1 {
			return errors.NewValidationError("workers", n, "must be at least 1")
		}
		m.workers = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(m *Matcher) error {
		m.logger = l
		return nil
	}
}

// New creates a Matcher.
func New(b backend.Completer, opts ...Option) (*Matcher, error) {
	if b == nil {
		return nil, errors.NewValidationError("backend", nil, "completer is required")
	}
	m := &Matcher{
		backend:   b,
		batchSize: constants.DefaultMatchBatchSize,
		workers:   constants.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type batchOutput struct {
	candidates map[edi.ErpKey]*edi.MatchCandidate
	rejected   int
}

// Match proposes a catalogue element for each field. Failed batches leave
// their fields without a candidate. The error is non-nil only when ctx was
// canceled.
func (m *Matcher) Match(ctx context.Context, fields []edi.ErpField, catalogue []edi.CatalogueEntry) (*Report, error) {
	logger := m.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	ctx = logging.WithOperation(logging.WithLogger(ctx, logger), "match")

	report := &Report{Candidates: make(map[edi.ErpKey]*edi.MatchCandidate, len(fields))}
	for _, f := range fields {
		report.Candidates[f.Key()] = nil
	}
	if len(fields) == 0 {
		return report, nil
	}
	if len(catalogue) == 0 {
		logger.Warn().Int("fields", len(fields)).Msg("Element catalogue is empty, skipping semantic matching")
		return report, nil
	}

	cat := newCatalogue(catalogue)
	var tasks []fanout.Task[int, batchOutput]
	for i := 0; i*m.batchSize < len(fields); i++ {
		batch := fields[i*m.batchSize : min((i+1)*m.batchSize, len(fields))]
		tasks = append(tasks, fanout.Task[int, batchOutput]{
			Key: i,
			Run: func(ctx context.Context) (batchOutput, error) {
				return m.matchBatch(logging.WithBatch(ctx, i), batch, catalogue, cat)
			},
		})
	}
	report.Batches = len(tasks)

	logger.Info().
		Int("fields", len(fields)).
		Int("batches", len(tasks)).
		Int("catalogue", len(catalogue)).
		Msg("Running semantic matching")

	outcomes := fanout.Run(ctx, m.workers, tasks)
	fanout.Reduce(tasks, outcomes, report,
		func(r *Report, _ int, out batchOutput) *Report {
			for key, c := range out.candidates {
				r.Candidates[key] = c
			}
			r.Rejected += out.rejected
			return r
		},
		func(index int, err error) {
			report.FailedBatches = append(report.FailedBatches, index)
			logger.Warn().Err(err).Int("batch", index).Msg("Match batch failed, its fields stay unmapped")
		})

	logger.Info().
		Int("matched", report.Matched()).
		Int("rejected", report.Rejected).
		Int("failed_batches", len(report.FailedBatches)).
		Msg("Semantic matching complete")

	if err := ctx.Err(); err != nil {
		return report, errors.Join(errors.ErrCanceled, err)
	}
	return report, nil
}

type matchReply struct {
	ErpSegment  string `json:"sap_segment"`
	ErpField    string `json:"sap_field"`
	WireSegment string `json:"x12_segment"`
	WireElement string `json:"x12_element"`
	Description string `json:"x12_description"`
	MappingRule string `json:"mapping_rule"`
	Confidence  string `json:"confidence"`
	Reason      string `json:"reason"`
}

func (m *Matcher) matchBatch(ctx context.Context, batch []edi.ErpField, catalogue []edi.CatalogueEntry, cat *catalogueIndex) (batchOutput, error) {
	logger := logging.FromContext(ctx)

	reply, err := m.backend.Complete(ctx, BuildPrompt(batch, catalogue), SystemPrompt)
	if err != nil {
		return batchOutput{}, err
	}
	res, err := decode.Extract(reply, WrapperKeys...)
	if err != nil {
		logger.Warn().Str("sample", errors.Truncate(reply, constants.SampleLength)).Msg("Match reply could not be decoded")
		return batchOutput{}, err
	}

	members := newBatchKeys(batch)
	out := batchOutput{candidates: make(map[edi.ErpKey]*edi.MatchCandidate)}
	for _, item := range res.Items {
		var r matchReply
		if err := item.Unmarshal(&r); err != nil {
			continue
		}
		key, ok := members.resolve(r.ErpSegment, r.ErpField, item.Key)
		if !ok {
			logger.Debug().Str("sap_segment", r.ErpSegment).Str("sap_field", r.ErpField).Msg("Ignoring match for a field outside the batch")
			continue
		}
		c, rejected := cat.candidate(r)
		if rejected {
			out.rejected++
			logger.Debug().
				Str("field", key.String()).
				Str("x12_element", r.WireElement).
				Msg("Rejecting match to an element outside the catalogue")
		}
		if _, seen := out.candidates[key]; seen && c == nil {
			continue
		}
		out.candidates[key] = c
	}
	return out, nil
}

// batchKeys resolves reply identities to the ERP keys of one batch.
type batchKeys struct {
	keys    map[edi.ErpKey]struct{}
	byField map[string][]edi.ErpKey
}

func newBatchKeys(batch []edi.ErpField) *batchKeys {
	b := &batchKeys{
		keys:    make(map[edi.ErpKey]struct{}, len(batch)),
		byField: make(map[string][]edi.ErpKey),
	}
	for _, f := range batch {
		key := f.Key()
		b.keys[key] = struct{}{}
		b.byField[key.Field] = append(b.byField[key.Field], key)
	}
	return b
}

// resolve accepts the reply's own (segment, field) or, failing that, the
// member name of a keyed reply as SEGMENT.FIELD or a field name unique to
// the batch.
func (b *batchKeys) resolve(segment, field, itemKey string) (edi.ErpKey, bool) {
	if field != "" {
		if segment != "" {
			key := edi.NewErpKey(segment, field)
			_, ok := b.keys[key]
			return key, ok
		}
		return b.unique(field)
	}
	if itemKey == "" {
		return edi.ErpKey{}, false
	}
	if seg, fld, ok := strings.Cut(itemKey, "."); ok {
		key := edi.NewErpKey(seg, fld)
		_, found := b.keys[key]
		return key, found
	}
	return b.unique(itemKey)
}

func (b *batchKeys) unique(field string) (edi.ErpKey, bool) {
	keys := b.byField[edi.NewErpKey("", field).Field]
	if len(keys) != 1 {
		return edi.ErpKey{}, false
	}
	return keys[0], true
}

// catalogueIndex validates proposals against the element catalogue.
type catalogueIndex struct {
	entries   map[edi.ElementKey]edi.CatalogueEntry
	byElement map[string][]edi.CatalogueEntry
}

func newCatalogue(catalogue []edi.CatalogueEntry) *catalogueIndex {
	c := &catalogueIndex{
		entries:   make(map[edi.ElementKey]edi.CatalogueEntry, len(catalogue)),
		byElement: make(map[string][]edi.CatalogueEntry),
	}
	for _, e := range catalogue {
		key := edi.NewElementKey(e.Segment, e.Element)
		if _, dup := c.entries[key]; dup {
			continue
		}
		c.entries[key] = e
		c.byElement[key.Element] = append(c.byElement[key.Element], e)
	}
	return c
}

// lookup finds the catalogue entry a proposal names. A proposal without a
// segment is accepted when its element id is unique in the catalogue.
func (c *catalogueIndex) lookup(segment, element string) (edi.CatalogueEntry, bool) {
	if segment != "" {
		e, ok := c.entries[edi.NewElementKey(segment, element)]
		return e, ok
	}
	matches := c.byElement[edi.NormalizeElementID("", element)]
	if len(matches) != 1 {
		return edi.CatalogueEntry{}, false
	}
	return matches[0], true
}

// candidate converts a reply into a candidate. It returns nil for
// explicit non-matches, and nil with rejected set for proposals naming an
// element the catalogue does not contain.
func (c *catalogueIndex) candidate(r matchReply) (cand *edi.MatchCandidate, rejected bool) {
	if strings.TrimSpace(r.WireElement) == "" {
		return nil, false
	}
	confidence := edi.ParseConfidence(r.Confidence)
	if confidence == edi.ConfidenceNone {
		return nil, false
	}
	entry, ok := c.lookup(strings.TrimSpace(r.WireSegment), r.WireElement)
	if !ok {
		return nil, true
	}

	key := edi.NewElementKey(entry.Segment, entry.Element)
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		desc = entry.Description
	}
	rule := strings.TrimSpace(r.MappingRule)
	if rule == "" {
		rule = "Semantic match"
	}
	return &edi.MatchCandidate{
		WireSegment: key.Segment,
		WireElement: key.Element,
		ElementDesc: desc,
		MappingRule: rule,
		Confidence:  confidence,
		Reason:      strings.TrimSpace(r.Reason),
	}, false
}
