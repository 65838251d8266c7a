package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"buchhaltung/internal/core"
	"buchhaltung/internal/livingapps"
	"buchhaltung/internal/records"
)

const timestampLayout = "2006-01-02T15:04:05"

// Store keeps all three collections in process memory. It speaks the same
// contract as the hosted gateway, including partial updates, so the
// dashboard can run without network access.
type Store struct {
	mu         sync.Mutex
	costGroups map[string]core.CostGroup
	receipts   map[string]core.Receipt
	handovers  map[string]core.Handover

	now     func() time.Time
	refBase string
	refApp  string
}

var _ records.Backend = (*Store)(nil)

type Option func(*Store)

// WithClock replaces time.Now for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithReferenceBase sets the base URL and app id used to build cost group
// references, so they match a hosted workspace.
func WithReferenceBase(baseURL, costGroupApp string) Option {
	return func(s *Store) {
		s.refBase = baseURL
		s.refApp = costGroupApp
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		costGroups: map[string]core.CostGroup{},
		receipts:   map[string]core.Receipt{},
		handovers:  map[string]core.Handover{},
		now:        time.Now,
		refBase:    livingapps.DefaultBaseURL,
		refApp:     livingapps.DefaultAppIDs().CostGroups,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromFiles seeds cost groups from <base>/seed_kostengruppen.txt, one
// "Nummer;Name" per line. Without a seed file a small default chart of
// accounts is used.
func NewFromFiles(base string, opts ...Option) *Store {
	s := New(opts...)
	seeds := readSeeds(filepath.Join(base, "seed_kostengruppen.txt"))
	if len(seeds) == 0 {
		seeds = [][2]string{
			{"4930", "Bürobedarf"},
			{"4530", "Kfz-Kosten"},
			{"4360", "Versicherungen"},
		}
	}
	for _, kv := range seeds {
		_, _ = s.CreateCostGroup(context.Background(), core.CostGroupFields{
			Number: core.String(kv[0]),
			Name:   core.String(kv[1]),
		})
	}
	return s
}

func (s *Store) CostGroupRef(id string) string {
	return core.RecordURL(s.refBase, s.refApp, id)
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func (s *Store) ListCostGroups(_ context.Context) ([]core.CostGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.costGroups, func(c core.CostGroup) string { return c.ID }), nil
}

func (s *Store) GetCostGroup(_ context.Context, id string) (core.CostGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cg, ok := s.costGroups[id]
	if !ok {
		return core.CostGroup{}, fmt.Errorf("cost group %s: %w", id, core.ErrNotFound)
	}
	return cg, nil
}

func (s *Store) CreateCostGroup(_ context.Context, f core.CostGroupFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := core.NewRecordID()
	s.costGroups[id] = core.CostGroup{Meta: core.Meta{ID: id, CreatedAt: s.stamp()}, CostGroupFields: cloneCostGroup(f)}
	return core.Ack{ID: id}, nil
}

func (s *Store) UpdateCostGroup(_ context.Context, id string, f core.CostGroupFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cg, ok := s.costGroups[id]
	if !ok {
		return core.Ack{}, fmt.Errorf("cost group %s: %w", id, core.ErrNotFound)
	}
	f = cloneCostGroup(f)
	set(&cg.Name, f.Name)
	set(&cg.Number, f.Number)
	set(&cg.Description, f.Description)
	set(&cg.Image, f.Image)
	cg.UpdatedAt = ptr(s.stamp())
	s.costGroups[id] = cg
	return core.Ack{ID: id}, nil
}

func (s *Store) DeleteCostGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.costGroups[id]; !ok {
		return fmt.Errorf("cost group %s: %w", id, core.ErrNotFound)
	}
	delete(s.costGroups, id)
	return nil
}

func (s *Store) ListReceipts(_ context.Context) ([]core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.receipts, func(r core.Receipt) string { return r.ID }), nil
}

func (s *Store) GetReceipt(_ context.Context, id string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return core.Receipt{}, fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
	}
	return r, nil
}

func (s *Store) CreateReceipt(_ context.Context, f core.ReceiptFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := core.NewRecordID()
	s.receipts[id] = core.Receipt{Meta: core.Meta{ID: id, CreatedAt: s.stamp()}, ReceiptFields: cloneReceipt(f)}
	return core.Ack{ID: id}, nil
}

func (s *Store) UpdateReceipt(_ context.Context, id string, f core.ReceiptFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return core.Ack{}, fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
	}
	f = cloneReceipt(f)
	set(&r.Date, f.Date)
	set(&r.Number, f.Number)
	set(&r.Description, f.Description)
	set(&r.Amount, f.Amount)
	set(&r.Kind, f.Kind)
	set(&r.CostGroupRef, f.CostGroupRef)
	set(&r.Attachment, f.Attachment)
	set(&r.Notes, f.Notes)
	r.UpdatedAt = ptr(s.stamp())
	s.receipts[id] = r
	return core.Ack{ID: id}, nil
}

func (s *Store) DeleteReceipt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[id]; !ok {
		return fmt.Errorf("receipt %s: %w", id, core.ErrNotFound)
	}
	delete(s.receipts, id)
	return nil
}

func (s *Store) ListHandovers(_ context.Context) ([]core.Handover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.handovers, func(h core.Handover) string { return h.ID }), nil
}

func (s *Store) GetHandover(_ context.Context, id string) (core.Handover, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handovers[id]
	if !ok {
		return core.Handover{}, fmt.Errorf("handover %s: %w", id, core.ErrNotFound)
	}
	return h, nil
}

func (s *Store) CreateHandover(_ context.Context, f core.HandoverFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := core.NewRecordID()
	s.handovers[id] = core.Handover{Meta: core.Meta{ID: id, CreatedAt: s.stamp()}, HandoverFields: cloneHandover(f)}
	return core.Ack{ID: id}, nil
}

func (s *Store) UpdateHandover(_ context.Context, id string, f core.HandoverFields) (core.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handovers[id]
	if !ok {
		return core.Ack{}, fmt.Errorf("handover %s: %w", id, core.ErrNotFound)
	}
	f = cloneHandover(f)
	set(&h.AsOfDate, f.AsOfDate)
	set(&h.PeriodStart, f.PeriodStart)
	set(&h.PeriodEnd, f.PeriodEnd)
	set(&h.DeliveredReceiptsRef, f.DeliveredReceiptsRef)
	set(&h.Remarks, f.Remarks)
	h.UpdatedAt = ptr(s.stamp())
	s.handovers[id] = h
	return core.Ack{ID: id}, nil
}

func (s *Store) DeleteHandover(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handovers[id]; !ok {
		return fmt.Errorf("handover %s: %w", id, core.ErrNotFound)
	}
	delete(s.handovers, id)
	return nil
}

// set overwrites *dst only when src is present.
func set[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func ptr[T any](v T) *T { return &v }

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCostGroup(f core.CostGroupFields) core.CostGroupFields {
	return core.CostGroupFields{
		Name:        clone(f.Name),
		Number:      clone(f.Number),
		Description: clone(f.Description),
		Image:       clone(f.Image),
	}
}

func cloneReceipt(f core.ReceiptFields) core.ReceiptFields {
	return core.ReceiptFields{
		Date:         clone(f.Date),
		Number:       clone(f.Number),
		Description:  clone(f.Description),
		Amount:       clone(f.Amount),
		Kind:         clone(f.Kind),
		CostGroupRef: clone(f.CostGroupRef),
		Attachment:   clone(f.Attachment),
		Notes:        clone(f.Notes),
	}
}

func cloneHandover(f core.HandoverFields) core.HandoverFields {
	return core.HandoverFields{
		AsOfDate:             clone(f.AsOfDate),
		PeriodStart:          clone(f.PeriodStart),
		PeriodEnd:            clone(f.PeriodEnd),
		DeliveredReceiptsRef: clone(f.DeliveredReceiptsRef),
		Remarks:              clone(f.Remarks),
	}
}

func sortedValues[T any](m map[string]T, key func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

func readSeeds(path string) [][2]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out [][2]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		number, name, ok := strings.Cut(line, ";")
		if !ok {
			number, name = "", line
		}
		number, name = strings.TrimSpace(number), strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[number+";"+name]; dup {
			continue
		}
		seen[number+";"+name] = struct{}{}
		out = append(out, [2]string{number, name})
	}
	return out
}
