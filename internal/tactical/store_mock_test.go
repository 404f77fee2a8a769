package tactical

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/thebtf/laboveda/internal/db"
	"github.com/thebtf/laboveda/pkg/models"
)

// MockStore is an in-memory db.CatalogStore with error injection.
// With atomic set, RunInTx restores a snapshot when fn fails.
type MockStore struct {
	matrices  map[string]*models.Matrix
	assets    map[string]*models.Asset
	nodes     map[string]*models.Node
	sequences map[string]int64
	failOn    map[string]error
	calls     map[string]int
	atomic    bool
	mu        sync.Mutex
}

var _ db.CatalogStore = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		matrices:  make(map[string]*models.Matrix),
		assets:    make(map[string]*models.Asset),
		nodes:     make(map[string]*models.Node),
		sequences: make(map[string]int64),
		failOn:    make(map[string]error),
		calls:     make(map[string]int),
		atomic:    true,
	}
}

// FailOn makes every later call of method return err. A nil err clears it.
func (m *MockStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, method)
		return
	}
	m.failOn[method] = err
}

func (m *MockStore) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// enter records the call and returns the injected error. Callers hold m.mu.
func (m *MockStore) enter(method string) error {
	m.calls[method]++
	return m.failOn[method]
}

type mockSnapshot struct {
	matrices  map[string]models.Matrix
	assets    map[string]models.Asset
	nodes     map[string]models.Node
	sequences map[string]int64
}

func (m *MockStore) snapshot() mockSnapshot {
	s := mockSnapshot{
		matrices:  make(map[string]models.Matrix, len(m.matrices)),
		assets:    make(map[string]models.Asset, len(m.assets)),
		nodes:     make(map[string]models.Node, len(m.nodes)),
		sequences: make(map[string]int64, len(m.sequences)),
	}
	for k, v := range m.matrices {
		s.matrices[k] = *v
	}
	for k, v := range m.assets {
		s.assets[k] = *v
	}
	for k, v := range m.nodes {
		n := *v
		n.AssetSKU = copyStr(v.AssetSKU)
		s.nodes[k] = n
	}
	for k, v := range m.sequences {
		s.sequences[k] = v
	}
	return s
}

func (m *MockStore) restore(s mockSnapshot) {
	m.matrices = make(map[string]*models.Matrix, len(s.matrices))
	for k, v := range s.matrices {
		v := v
		m.matrices[k] = &v
	}
	m.assets = make(map[string]*models.Asset, len(s.assets))
	for k, v := range s.assets {
		v := v
		m.assets[k] = &v
	}
	m.nodes = make(map[string]*models.Node, len(s.nodes))
	for k, v := range s.nodes {
		v := v
		m.nodes[k] = &v
	}
	m.sequences = s.sequences
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (m *MockStore) RunInTx(ctx context.Context, fn func(tx db.CatalogStore) error) error {
	m.mu.Lock()
	atomic := m.atomic
	var snap mockSnapshot
	if atomic {
		snap = m.snapshot()
	}
	m.mu.Unlock()

	err := fn(m)
	if err != nil && atomic {
		m.mu.Lock()
		m.restore(snap)
		m.mu.Unlock()
	}
	return err
}

func (m *MockStore) Atomic() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atomic
}

func (m *MockStore) GetMatrix(ctx context.Context, code string) (*models.Matrix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetMatrix"); err != nil {
		return nil, err
	}
	mx, ok := m.matrices[code]
	if !ok {
		return nil, models.NotFound("matrix", code)
	}
	out := *mx
	return &out, nil
}

func (m *MockStore) ListMatrices(ctx context.Context) ([]*models.Matrix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListMatrices"); err != nil {
		return nil, err
	}
	out := make([]*models.Matrix, 0, len(m.matrices))
	for _, mx := range m.matrices {
		c := *mx
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (m *MockStore) ListMatrixCodes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListMatrixCodes"); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(m.matrices))
	for code := range m.matrices {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (m *MockStore) CreateMatrix(ctx context.Context, mx *models.Matrix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateMatrix"); err != nil {
		return err
	}
	if _, ok := m.matrices[mx.Code]; ok {
		return &models.ValidationError{Err: models.ErrDuplicate, Field: "matrix", Reason: "already exists"}
	}
	if mx.Kind == "" {
		mx.Kind = models.MatrixPrimary
	}
	c := *mx
	m.matrices[mx.Code] = &c
	return nil
}

func (m *MockStore) UpdateMatrixRollup(ctx context.Context, code string, r models.MatrixRollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateMatrixRollup"); err != nil {
		return err
	}
	mx, ok := m.matrices[code]
	if !ok {
		return models.NotFound("matrix", code)
	}
	at := r.AuditedAt
	mx.AssetCount = r.AssetCount
	mx.TotalScore = r.TotalScore
	mx.TotalTraffic = r.TotalTraffic
	mx.TotalRevenue = r.TotalRevenue
	mx.LastAuditAt = &at
	return nil
}

func (m *MockStore) NextSequence(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NextSequence"); err != nil {
		return 0, err
	}
	if _, ok := m.matrices[code]; !ok {
		return 0, models.NotFound("matrix", code)
	}
	if v, ok := m.sequences[code]; ok {
		m.sequences[code] = v + 1
		return v + 1, nil
	}
	var count int64
	for _, a := range m.assets {
		if a.MatrixCode == code {
			count++
		}
	}
	m.sequences[code] = count + 1
	return count + 1, nil
}

func (m *MockStore) GetAsset(ctx context.Context, sku string) (*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetAsset"); err != nil {
		return nil, err
	}
	a, ok := m.assets[sku]
	if !ok {
		return nil, models.NotFound("asset", sku)
	}
	out := *a
	return &out, nil
}

func (m *MockStore) ListAssetsByMatrix(ctx context.Context, code string) ([]*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListAssetsByMatrix"); err != nil {
		return nil, err
	}
	return m.filterAssets(func(a *models.Asset) bool { return a.MatrixCode == code }), nil
}

func (m *MockStore) filterAssets(keep func(*models.Asset) bool) []*models.Asset {
	var out []*models.Asset
	for _, a := range m.assets {
		if keep(a) {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}

func (m *MockStore) ListAssetRefs(ctx context.Context) ([]models.AssetRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListAssetRefs"); err != nil {
		return nil, err
	}
	refs := make([]models.AssetRef, 0, len(m.assets))
	for _, a := range m.assets {
		refs = append(refs, models.AssetRef{SKU: a.SKU, MatrixCode: a.MatrixCode})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].SKU < refs[j].SKU })
	return refs, nil
}

func (m *MockStore) CountAssetsByMatrix(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountAssetsByMatrix"); err != nil {
		return 0, err
	}
	return int64(len(m.filterAssets(func(a *models.Asset) bool { return a.MatrixCode == code }))), nil
}

func (m *MockStore) SearchAssets(ctx context.Context, query string, limit int) ([]*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SearchAssets"); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	out := m.filterAssets(func(a *models.Asset) bool {
		return strings.Contains(strings.ToLower(a.SKU), q) || strings.Contains(strings.ToLower(a.DisplayName), q)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) ListRecentAssets(ctx context.Context, limit int) ([]*models.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListRecentAssets"); err != nil {
		return nil, err
	}
	out := m.filterAssets(func(*models.Asset) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateAsset"); err != nil {
		return err
	}
	if _, ok := m.assets[a.SKU]; ok {
		return &models.ValidationError{Err: models.ErrDuplicate, Field: "asset", Reason: "already exists"}
	}
	if _, ok := m.matrices[a.MatrixCode]; !ok {
		return &models.ValidationError{Field: "asset", Reason: "referenced record does not exist"}
	}
	if a.Tier == "" {
		a.Tier = models.TierDust
	}
	c := *a
	m.assets[a.SKU] = &c
	return nil
}

func (m *MockStore) UpdateAssetScore(ctx context.Context, sku string, s models.AssetScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateAssetScore"); err != nil {
		return err
	}
	a, ok := m.assets[sku]
	if !ok {
		return models.NotFound("asset", sku)
	}
	at := s.AuditedAt
	a.Score = s.Score
	a.Tier = s.Tier
	a.Traffic = s.Traffic
	a.LastAuditAt = &at
	return nil
}

func (m *MockStore) UpdateAssetLinks(ctx context.Context, sku string, links models.AssetLinks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateAssetLinks"); err != nil {
		return err
	}
	a, ok := m.assets[sku]
	if !ok {
		return models.NotFound("asset", sku)
	}
	if links.FileSource != nil {
		a.FileSourceLink = *links.FileSource
	}
	if links.Monetization != nil {
		a.MonetizationLink = *links.Monetization
	}
	return nil
}

func (m *MockStore) SetAssetRevenue(ctx context.Context, sku string, revenue float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SetAssetRevenue"); err != nil {
		return err
	}
	a, ok := m.assets[sku]
	if !ok {
		return models.NotFound("asset", sku)
	}
	a.Revenue = revenue
	return nil
}

func (m *MockStore) MoveAsset(ctx context.Context, sku, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("MoveAsset"); err != nil {
		return err
	}
	a, ok := m.assets[sku]
	if !ok {
		return models.NotFound("asset", sku)
	}
	if _, ok := m.matrices[code]; !ok {
		return &models.ValidationError{Field: "asset", Reason: "referenced record does not exist"}
	}
	a.MatrixCode = code
	return nil
}

func (m *MockStore) DeleteAsset(ctx context.Context, sku string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteAsset"); err != nil {
		return err
	}
	if _, ok := m.assets[sku]; !ok {
		return models.NotFound("asset", sku)
	}
	delete(m.assets, sku)
	for _, n := range m.nodes {
		if n.AssetSKU != nil && *n.AssetSKU == sku {
			n.AssetSKU = nil
		}
	}
	return nil
}

func (m *MockStore) GetNodes(ctx context.Context, ids []string) ([]*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetNodes"); err != nil {
		return nil, err
	}
	var out []*models.Node
	for _, id := range ids {
		if n, ok := m.nodes[id]; ok {
			c := *n
			c.AssetSKU = copyStr(n.AssetSKU)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MockStore) filterNodes(keep func(*models.Node) bool) []*models.Node {
	var out []*models.Node
	for _, n := range m.nodes {
		if keep(n) {
			c := *n
			c.AssetSKU = copyStr(n.AssetSKU)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockStore) ListNodesByAsset(ctx context.Context, sku string) ([]*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListNodesByAsset"); err != nil {
		return nil, err
	}
	return m.filterNodes(func(n *models.Node) bool { return n.AssetSKU != nil && *n.AssetSKU == sku }), nil
}

func (m *MockStore) ListOrphanNodes(ctx context.Context, limit int) ([]*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListOrphanNodes"); err != nil {
		return nil, err
	}
	out := m.filterNodes(func(n *models.Node) bool { return n.IsOrphan() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) UpsertNode(ctx context.Context, n *models.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpsertNode"); err != nil {
		return err
	}
	if cur, ok := m.nodes[n.ID]; ok {
		cur.Title = n.Title
		cur.ImageURL = n.ImageURL
		cur.Counters = n.Counters
		return nil
	}
	c := *n
	c.AssetSKU = copyStr(n.AssetSKU)
	m.nodes[n.ID] = &c
	return nil
}

func (m *MockStore) AssignNodes(ctx context.Context, ids []string, sku string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AssignNodes"); err != nil {
		return 0, err
	}
	if sku != "" {
		if _, ok := m.assets[sku]; !ok {
			return 0, &models.ValidationError{Field: "asset", Reason: "referenced record does not exist"}
		}
	}
	var n int64
	for _, id := range ids {
		node, ok := m.nodes[id]
		if !ok {
			continue
		}
		if sku == "" {
			node.AssetSKU = nil
		} else {
			owner := sku
			node.AssetSKU = &owner
		}
		n++
	}
	return n, nil
}

func (m *MockStore) OrphanAssetNodes(ctx context.Context, sku string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("OrphanAssetNodes"); err != nil {
		return 0, err
	}
	var n int64
	for _, node := range m.nodes {
		if node.AssetSKU != nil && *node.AssetSKU == sku {
			node.AssetSKU = nil
			n++
		}
	}
	return n, nil
}

func (m *MockStore) DeleteOrphanNodes(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteOrphanNodes"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if node, ok := m.nodes[id]; ok && node.IsOrphan() {
			delete(m.nodes, id)
			n++
		}
	}
	return n, nil
}

func (m *MockStore) Radar(ctx context.Context, kind models.RadarKind, matrixCode string, limit int) ([]models.RadarItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Radar"); err != nil {
		return nil, err
	}
	var out []models.RadarItem
	for _, a := range m.filterAssets(func(a *models.Asset) bool { return matrixCode == "" || a.MatrixCode == matrixCode }) {
		if kind == models.RadarDustCleaner && a.Tier == models.TierDust {
			out = append(out, models.RadarItem{SKU: a.SKU, MatrixCode: a.MatrixCode, Name: a.DisplayName, Tier: a.Tier, Score: a.Score})
		}
	}
	return out, nil
}

func (m *MockStore) GlobalKPIs(ctx context.Context) (*models.GlobalKPIs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GlobalKPIs"); err != nil {
		return nil, err
	}
	k := &models.GlobalKPIs{
		TotalMatrices: int64(len(m.matrices)),
		TotalAssets:   int64(len(m.assets)),
		TotalNodes:    int64(len(m.nodes)),
	}
	for _, n := range m.nodes {
		if n.IsOrphan() {
			k.OrphanNodes++
		}
	}
	for _, a := range m.assets {
		k.GlobalScore += a.Score
		k.GlobalRevenue += a.Revenue
	}
	return k, nil
}

var errDiskFull = errors.New("disk full")
