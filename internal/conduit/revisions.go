package conduit

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/restack/internal/cache"
)

const (
	searchBatchSize = 100
	searchWorkers   = 4
)

// Status is a revision's review state.
type Status struct {
	Value  string `json:"value"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

// RevisionFields are the fields differential.revision.search returns.
type RevisionFields struct {
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	AuthorPHID string `json:"authorPHID"`
	Status     Status `json:"status"`
}

// Revision is one Differential revision.
type Revision struct {
	ID     int            `json:"id"`
	PHID   string         `json:"phid"`
	Fields RevisionFields `json:"fields"`
}

// Name returns the revision's monogram, e.g. "D123".
func (r Revision) Name() string { return "D" + strconv.Itoa(r.ID) }

// ref is the immutable part of a revision kept in the cache.
type ref struct {
	ID   int    `json:"id"`
	PHID string `json:"phid"`
}

type searchResult struct {
	Data []Revision `json:"data"`
}

// GetRevisions fetches revisions by numeric ID. The result follows the
// order of ids, repeats duplicates and skips IDs the server does not know.
func (c *Client) GetRevisions(ctx context.Context, ids []int) ([]Revision, error) {
	byID, err := search(ctx, c, "ids", ids, func(r Revision) int { return r.ID })
	if err != nil {
		return nil, err
	}
	out := make([]Revision, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetRevisionsByPHID is GetRevisions keyed by PHID.
func (c *Client) GetRevisionsByPHID(ctx context.Context, phids []string) ([]Revision, error) {
	byPHID, err := search(ctx, c, "phids", phids, func(r Revision) string { return r.PHID })
	if err != nil {
		return nil, err
	}
	out := make([]Revision, 0, len(phids))
	for _, phid := range phids {
		if r, ok := byPHID[phid]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// search runs differential.revision.search for the distinct keys in
// batches, concurrently, and indexes the results by the constraint field.
func search[K int | string](ctx context.Context, c *Client, field string, keys []K, keyOf func(Revision) K) (map[K]Revision, error) {
	distinct := slices.Clone(keys)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)

	var (
		mu    sync.Mutex
		found = make(map[K]Revision, len(distinct))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchWorkers)
	for batch := range slices.Chunk(distinct, searchBatchSize) {
		g.Go(func() error {
			var res searchResult
			params := map[string]any{
				"constraints": map[string]any{field: batch},
				"limit":       len(batch),
			}
			if err := c.Call(gctx, "differential.revision.search", params, &res); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range res.Data {
				c.remember(r)
				found[keyOf(r)] = r
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.log.Debug("revisions fetched", "field", field, "requested", len(distinct), "found", len(found))
	return found, nil
}

func (c *Client) remember(r Revision) {
	v := ref{ID: r.ID, PHID: r.PHID}
	if err := c.cache.Put(cache.RevisionKey(c.apiURL, "id", strconv.Itoa(r.ID)), v); err != nil {
		c.log.Debug("cache write failed", "error", err)
	}
	if err := c.cache.Put(cache.RevisionKey(c.apiURL, "phid", r.PHID), v); err != nil {
		c.log.Debug("cache write failed", "error", err)
	}
}

// ResolvePHIDs maps revision IDs to PHIDs, consulting the cache before the
// server. IDs the server does not know are absent from the result.
func (c *Client) ResolvePHIDs(ctx context.Context, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	var missing []int
	for _, id := range ids {
		var r ref
		if c.cache.Get(cache.RevisionKey(c.apiURL, "id", strconv.Itoa(id)), &r) && r.PHID != "" {
			out[id] = r.PHID
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	revs, err := c.GetRevisions(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, r := range revs {
		out[r.ID] = r.PHID
	}
	return out, nil
}

// ResolveIDs maps PHIDs to revision IDs, consulting the cache first.
func (c *Client) ResolveIDs(ctx context.Context, phids []string) (map[string]int, error) {
	out := make(map[string]int, len(phids))
	var missing []string
	for _, phid := range phids {
		var r ref
		if c.cache.Get(cache.RevisionKey(c.apiURL, "phid", phid), &r) && r.ID != 0 {
			out[phid] = r.ID
			continue
		}
		missing = append(missing, phid)
	}
	if len(missing) == 0 {
		return out, nil
	}
	revs, err := c.GetRevisionsByPHID(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, r := range revs {
		out[r.PHID] = r.ID
	}
	return out, nil
}

// ParseRevisionID accepts "D123", "d123" or "123".
func ParseRevisionID(s string) (int, error) {
	t := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "D"), "d")
	id, err := strconv.Atoi(t)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid revision %q", s)
	}
	return id, nil
}
