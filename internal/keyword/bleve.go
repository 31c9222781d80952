package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/docreader/internal/models"
)

const defaultFuzziness = 1

// bleveDoc is the indexed shape of a record.
type bleveDoc struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	DocType  string `json:"doc_type"`
}

func newBleveDoc(rec *models.Record) bleveDoc {
	return bleveDoc{Filename: rec.Filename, Content: rec.RawText, DocType: rec.DocType}
}

// BleveIndex implements RecordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. Parent directories are created by Bleve.
// If the mapping changes, remove the directory; Backfill rebuilds it from the record store.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates a non-persistent index.
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase and tokenize, no stemming, so account and invoice numbers
	// match exactly.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	docMapping.AddFieldMappingsAt("doc_type", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping
	return im
}

// IndexRecord adds or replaces rec.
func (b *BleveIndex) IndexRecord(ctx context.Context, rec *models.Record) error {
	return b.index.Index(rec.ID, newBleveDoc(rec))
}

// IndexRecords adds records in one batch.
func (b *BleveIndex) IndexRecords(ctx context.Context, recs []*models.Record) error {
	batch := b.index.NewBatch()
	for _, rec := range recs {
		if err := batch.Index(rec.ID, newBleveDoc(rec)); err != nil {
			return fmt.Errorf("batch index %s: %w", rec.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search returns up to limit record ids matching query, best first.
// With FilenameBoost > 1 filename and content are queried separately and scores are added,
// with the filename score multiplied by the boost.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	if opts.FilenameBoost <= 1 {
		return b.run(ctx, b.textQuery(query, "", opts), limit, opts)
	}

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	filenameHits, err := b.run(ctx, b.textQuery(query, "filename", opts), reqSize, opts)
	if err != nil {
		return nil, err
	}
	contentHits, err := b.run(ctx, b.textQuery(query, "content", opts), reqSize, opts)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64)
	for _, h := range filenameHits {
		scores[h.ID] += h.Score * opts.FilenameBoost
	}
	for _, h := range contentHits {
		scores[h.ID] += h.Score
	}
	merged := make([]Result, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, Result{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (b *BleveIndex) run(ctx context.Context, q blevequery.Query, size int, opts *SearchOptions) ([]Result, error) {
	if opts.DocType != "" {
		tq := bleve.NewTermQuery(opts.DocType)
		tq.SetField("doc_type")
		q = bleve.NewConjunctionQuery(q, tq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = size
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// textQuery builds a match query, or a disjunction of fuzzy term queries when fuzzy is on.
// An empty field searches all text fields.
func (b *BleveIndex) textQuery(query, field string, opts *SearchOptions) blevequery.Query {
	terms := tokenizeQuery(query)
	if !opts.Fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 {
		fuzziness = defaultFuzziness
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed records.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
