package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for track documents:
// English-analyzed text fields for title/artist/album, keyword fields
// for the ID and file suffix.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	artistFieldMapping := bleve.NewTextFieldMapping()
	artistFieldMapping.Analyzer = en.AnalyzerName
	artistFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("artist", artistFieldMapping)

	albumFieldMapping := bleve.NewTextFieldMapping()
	albumFieldMapping.Analyzer = en.AnalyzerName
	albumFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("album", albumFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	suffixFieldMapping := bleve.NewTextFieldMapping()
	suffixFieldMapping.Analyzer = keyword.Name
	suffixFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("suffix", suffixFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
