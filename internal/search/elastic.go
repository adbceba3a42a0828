// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package search

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/loyaltyworks/recommender/internal/metrics"
)

// ElasticConfig configures the Elasticsearch adapter.
type ElasticConfig struct {
	// Addresses are the cluster node URLs.
	Addresses []string `koanf:"addresses"`

	// Username and Password enable basic auth when set.
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Elastic adapts the Client interface onto an Elasticsearch cluster.
//
// Document types are mapped onto one physical index per type, named
// "<index>-<type>". Elasticsearch removed in-index mapping types in 7.x;
// separate indexes preserve the per-type mapping and per-type deletion
// semantics the engine relies on.
type Elastic struct {
	es     *elasticsearch.Client
	logger zerolog.Logger
}

// NewElastic connects to the cluster. Connection construction errors are
// returned, not swallowed; callers that want best-effort behavior wrap
// the degradation explicitly at the call site.
func NewElastic(cfg ElasticConfig, logger zerolog.Logger) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("search: elasticsearch client: %w", err)
	}
	return &Elastic{
		es:     es,
		logger: logger.With().Str("component", "search").Logger(),
	}, nil
}

// physical returns the physical index name for a document type.
func physical(index, docType string) string {
	return index + "-" + strings.ToLower(docType)
}

// recordRequest observes one cluster round trip. Deferred, so the error
// pointer reads the named return after it settles.
func recordRequest(operation string, start time.Time, err *error) {
	metrics.RecordSearchRequest(operation, time.Since(start), *err)
}

// checkResponse drains and inspects an API response.
func checkResponse(res *esapi.Response, op string) error {
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: %s: %s: %s", op, res.Status(), string(body))
	}
	return nil
}

// Ping implements Client.
func (e *Elastic) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkResponse(res, "ping")
}

// EnsureIndex implements Client. Physical indexes are created lazily by
// PutMapping per type; the logical index itself has no physical presence.
func (e *Elastic) EnsureIndex(ctx context.Context, _ string) error {
	return e.Ping(ctx)
}

// GetMapping implements Client.
func (e *Elastic) GetMapping(ctx context.Context, index, docType string) (Mapping, bool, error) {
	name := physical(index, docType)
	res, err := e.es.Indices.GetMapping(
		e.es.Indices.GetMapping.WithContext(ctx),
		e.es.Indices.GetMapping.WithIndex(name),
	)
	if err != nil {
		return Mapping{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 404 {
		return Mapping{}, false, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return Mapping{}, false, fmt.Errorf("search: get mapping: %s: %s", res.Status(), string(body))
	}

	var raw map[string]struct {
		Mappings struct {
			Properties map[string]FieldMapping `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return Mapping{}, false, fmt.Errorf("search: decode mapping: %w", err)
	}
	entry, ok := raw[name]
	if !ok || len(entry.Mappings.Properties) == 0 {
		return Mapping{}, false, nil
	}
	return Mapping{Properties: entry.Mappings.Properties}, true, nil
}

// PutMapping implements Client. The physical index is created with the
// mapping when absent; otherwise the mapping is updated in place.
func (e *Elastic) PutMapping(ctx context.Context, index, docType string, m Mapping) (err error) {
	defer recordRequest("put_mapping", time.Now(), &err)
	name := physical(index, docType)

	mappings := map[string]any{"properties": m.Properties}
	for k, v := range m.Extra {
		mappings[k] = v
	}

	exists, err := e.indexExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		body, err := json.Marshal(map[string]any{"mappings": mappings})
		if err != nil {
			return fmt.Errorf("search: marshal mapping: %w", err)
		}
		res, err := e.es.Indices.Create(name,
			e.es.Indices.Create.WithContext(ctx),
			e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return checkResponse(res, "create index")
	}

	body, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("search: marshal mapping: %w", err)
	}
	res, err := e.es.Indices.PutMapping([]string{name}, bytes.NewReader(body),
		e.es.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkResponse(res, "put mapping")
}

func (e *Elastic) indexExists(ctx context.Context, name string) (bool, error) {
	res, err := e.es.Indices.Exists([]string{name}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	return res.StatusCode == 200, nil
}

// Upsert implements Client using doc_as_upsert so a missing document is
// created rather than failing the partial update.
func (e *Elastic) Upsert(ctx context.Context, index, docType, id string, fields map[string]any) (err error) {
	defer recordRequest("upsert", time.Now(), &err)
	body, err := json.Marshal(map[string]any{
		"doc":           fields,
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("search: marshal document: %w", err)
	}
	res, err := e.es.Update(physical(index, docType), id, bytes.NewReader(body),
		e.es.Update.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkResponse(res, "upsert")
}

// BulkIndex implements Client.
func (e *Elastic) BulkIndex(ctx context.Context, index, docType string, docs []Document) (err error) {
	if len(docs) == 0 {
		return nil
	}
	defer recordRequest("bulk_index", time.Now(), &err)
	var buf bytes.Buffer
	for _, d := range docs {
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_id": d.ID},
		})
		if err != nil {
			return fmt.Errorf("search: marshal bulk action: %w", err)
		}
		source, err := json.Marshal(d.Fields)
		if err != nil {
			return fmt.Errorf("search: marshal bulk document %s: %w", d.ID, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	res, err := e.es.Bulk(bytes.NewReader(buf.Bytes()),
		e.es.Bulk.WithContext(ctx),
		e.es.Bulk.WithIndex(physical(index, docType)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search: bulk index: %s: %s", res.Status(), string(body))
	}

	// Bulk responses are 200 even when individual items fail.
	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int    `json:"status"`
			Error  any    `json:"error"`
			ID     string `json:"_id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("search: decode bulk response: %w", err)
	}
	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			for op, detail := range item {
				if detail.Status >= 300 {
					return fmt.Errorf("search: bulk %s failed for %s: status %d: %v",
						op, detail.ID, detail.Status, detail.Error)
				}
			}
		}
	}
	return nil
}

// Search implements Client.
func (e *Elastic) Search(ctx context.Context, index string, req Request) (_ []Hit, err error) {
	defer recordRequest("search", time.Now(), &err)
	body, err := json.Marshal(e.searchBody(index, req))
	if err != nil {
		return nil, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(physical(index, req.Type)),
		e.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search: query: %s: %s", res.Status(), string(raw))
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Score  float64        `json:"_score"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	hits := make([]Hit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Type: req.Type, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

// DeleteType implements Client by dropping the type's physical index.
func (e *Elastic) DeleteType(ctx context.Context, index, docType string) (err error) {
	defer recordRequest("delete_type", time.Now(), &err)
	res, err := e.es.Indices.Delete([]string{physical(index, docType)},
		e.es.Indices.Delete.WithContext(ctx),
		e.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkResponse(res, "delete type")
}

// DeleteIndex implements Client by dropping every per-type index under
// the logical name.
func (e *Elastic) DeleteIndex(ctx context.Context, index string) (err error) {
	defer recordRequest("delete_index", time.Now(), &err)
	res, err := e.es.Indices.Delete([]string{index + "-*"},
		e.es.Indices.Delete.WithContext(ctx),
		e.es.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return checkResponse(res, "delete index")
}

// searchBody translates a Request into the Elasticsearch query DSL.
func (e *Elastic) searchBody(index string, req Request) map[string]any {
	body := map[string]any{
		"from":  req.From,
		"query": e.queryJSON(index, req.Query),
	}
	if req.Size > 0 {
		body["size"] = req.Size
	}
	if len(req.Sort) > 0 {
		var sorts []any
		for _, s := range req.Sort {
			sorts = append(sorts, sortJSON(s))
		}
		body["sort"] = sorts
	}
	return body
}

func sortJSON(s Sort) any {
	order := "asc"
	if s.Desc {
		order = "desc"
	}
	switch {
	case s.ByScore:
		return map[string]any{"_score": map[string]any{"order": order}}
	case s.ByLength:
		return map[string]any{
			"_script": map[string]any{
				"type": "number",
				"script": map[string]any{
					"source": "doc.containsKey(params.field) ? doc[params.field].size() : 0",
					"params": map[string]any{"field": s.Field},
				},
				"order": order,
			},
		}
	default:
		return map[string]any{s.Field: map[string]any{"order": order}}
	}
}

func (e *Elastic) queryJSON(index string, q Query) map[string]any {
	switch {
	case q.MatchAll:
		return map[string]any{"match_all": map[string]any{}}

	case len(q.IDs) > 0:
		return map[string]any{"ids": map[string]any{"values": q.IDs}}

	case len(q.Term) > 0:
		var clauses []any
		for field, value := range q.Term {
			clauses = append(clauses, map[string]any{
				"match": map[string]any{field: value},
			})
		}
		if len(clauses) == 1 {
			return clauses[0].(map[string]any)
		}
		return map[string]any{"bool": map[string]any{"must": clauses}}

	case len(q.Terms) > 0:
		var clauses []any
		for field, values := range q.Terms {
			clauses = append(clauses, map[string]any{
				"terms": map[string]any{field: values},
			})
		}
		if len(clauses) == 1 {
			return clauses[0].(map[string]any)
		}
		return map[string]any{"bool": map[string]any{"must": clauses}}

	case q.MoreLikeThis != nil:
		mlt := q.MoreLikeThis
		like := make([]any, 0, len(mlt.Like))
		for _, ref := range mlt.Like {
			like = append(like, map[string]any{
				"_index": physical(index, ref.Type),
				"_id":    ref.ID,
			})
		}
		return map[string]any{
			"more_like_this": map[string]any{
				"fields":          mlt.Fields,
				"like":            like,
				"min_term_freq":   mlt.MinTermFreq,
				"min_doc_freq":    mlt.MinDocFreq,
				"max_query_terms": mlt.MaxQueryTerms,
			},
		}

	case q.Bool != nil:
		b := map[string]any{}
		if len(q.Bool.Must) > 0 {
			b["must"] = e.queriesJSON(index, q.Bool.Must)
		}
		if len(q.Bool.Should) > 0 {
			b["should"] = e.queriesJSON(index, q.Bool.Should)
			if len(q.Bool.Must) == 0 && len(q.Bool.Filter) == 0 {
				b["minimum_should_match"] = 1
			}
		}
		if len(q.Bool.MustNot) > 0 {
			b["must_not"] = e.queriesJSON(index, q.Bool.MustNot)
		}
		if len(q.Bool.Filter) > 0 {
			b["filter"] = e.queriesJSON(index, q.Bool.Filter)
		}
		return map[string]any{"bool": b}
	}
	// Zero query matches nothing.
	return map[string]any{"bool": map[string]any{"must_not": []any{map[string]any{"match_all": map[string]any{}}}}}
}

func (e *Elastic) queriesJSON(index string, qs []Query) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, e.queryJSON(index, q))
	}
	return out
}
